package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/AMOryC91/anonym/internal/bot"
	apperrors "github.com/AMOryC91/anonym/internal/errors"
	"github.com/AMOryC91/anonym/internal/i18n"
	"github.com/AMOryC91/anonym/internal/whois"
)

// Whois handles the guessing game: creating games, relaying questions and
// answers between the anonymous parties, and settling guesses and forfeits.
type Whois struct {
	s   bot.Service
	svc *whois.Service
}

func NewWhois(s bot.Service, svc *whois.Service) *Whois {
	return &Whois{s: s, svc: svc}
}

func (h *Whois) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if chat == nil || user == nil || u.Message == nil || user.IsBot || !chat.IsPrivate() {
		return true, nil
	}
	m := u.Message
	lang := h.s.GetLanguage(ctx, user)

	if m.IsCommand() {
		switch m.Command() {
		case "whois":
			return h.handleCreate(ctx, user, lang)
		case "guess":
			return h.handleGuess(ctx, m, user, lang)
		case "forfeit":
			return h.handleForfeit(ctx, user, lang)
		}
		return true, nil
	}

	// Free text belongs to the game only while the user is in one.
	game, isCreator, err := h.svc.ActiveGameFor(ctx, user.ID)
	if stderrors.Is(err, apperrors.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, errors.WithMessage(err, "route game text")
	}
	if m.Text == "" {
		return false, nil
	}
	if isCreator {
		return h.relayQuestion(ctx, game.ID, user, m.Text, lang)
	}
	return h.relayAnswer(ctx, game.ID, user, m.Text, lang)
}

func (h *Whois) handleCreate(ctx context.Context, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	if !bot.TogglesFrom(ctx).WhoisEnabled {
		reply(b, user.ID, i18n.Get("The game is currently disabled.", lang))
		return false, nil
	}
	game, err := h.svc.Create(ctx, user.ID)
	if err != nil && !stderrors.Is(err, apperrors.ErrPolicyViolation) {
		return false, errors.WithMessage(err, "create game")
	}
	link := fmt.Sprintf("https://t.me/%s?start=whois_%s", b.Self.UserName, game.JoinToken)
	text := i18n.Get("Share this link. Whoever opens it becomes your mystery opponent:", lang) + "\n" + link
	if stderrors.Is(err, apperrors.ErrPolicyViolation) {
		text = i18n.Get("You already have an open game:", lang) + "\n" + link
	}
	reply(b, user.ID, text)
	return false, nil
}

func (h *Whois) relayQuestion(ctx context.Context, gameID int64, user *api.User, text, lang string) (bool, error) {
	b := h.s.GetBot()
	game, err := h.svc.AskQuestion(ctx, gameID, user.ID, text)
	switch {
	case stderrors.Is(err, apperrors.ErrIllegalTransition):
		reply(b, user.ID, i18n.Get("No questions left. Use /guess to name your opponent or /forfeit to give up.", lang))
		return false, nil
	case stderrors.Is(err, apperrors.ErrPolicyViolation):
		return false, nil
	case err != nil:
		return false, errors.WithMessage(err, "ask question")
	}
	reply(b, game.OpponentID, i18n.Get("Question:", lang)+" "+text)
	left := whois.QuestionBudget - game.QuestionsAsked
	reply(b, user.ID, fmt.Sprintf(i18n.Get("Sent. Questions left: %d", lang), left))
	return false, nil
}

func (h *Whois) relayAnswer(ctx context.Context, gameID int64, user *api.User, text, lang string) (bool, error) {
	b := h.s.GetBot()
	game, err := h.svc.Answer(ctx, gameID, user.ID)
	if err != nil {
		if stderrors.Is(err, apperrors.ErrUnauthorized) || stderrors.Is(err, apperrors.ErrIllegalTransition) {
			return false, nil
		}
		return false, errors.WithMessage(err, "relay answer")
	}
	reply(b, game.CreatorID, i18n.Get("Answer:", lang)+" "+text)
	return false, nil
}

func (h *Whois) handleGuess(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	guess := strings.TrimSpace(m.CommandArguments())
	if guess == "" {
		reply(b, user.ID, i18n.Get("Name your opponent after the command, like /guess @username", lang))
		return false, nil
	}
	game, isCreator, err := h.svc.ActiveGameFor(ctx, user.ID)
	if stderrors.Is(err, apperrors.ErrNotFound) || (err == nil && !isCreator) {
		reply(b, user.ID, i18n.Get("You have no game where you can guess.", lang))
		return false, nil
	}
	if err != nil {
		return false, errors.WithMessage(err, "find game")
	}

	result, err := h.svc.Guess(ctx, game.ID, user.ID, guess)
	if err != nil {
		if stderrors.Is(err, apperrors.ErrIllegalTransition) {
			reply(b, user.ID, i18n.Get("This game is already over.", lang))
			return false, nil
		}
		return false, errors.WithMessage(err, "guess")
	}

	switch {
	case result.Correct:
		reply(b, user.ID, i18n.Get("Correct! You guessed who it was.", lang))
		reply(b, game.OpponentID, i18n.Get("You were guessed! The game is over.", lang))
	case result.Completed:
		reply(b, user.ID, i18n.Get("Wrong, and that was your last chance. Your opponent wins.", lang))
		reply(b, game.OpponentID, i18n.Get("They could not guess you. You win!", lang))
	default:
		left := whois.QuestionBudget - result.Game.QuestionsAsked
		reply(b, user.ID, fmt.Sprintf(i18n.Get("Wrong. Questions left: %d", lang), left))
	}
	return false, nil
}

func (h *Whois) handleForfeit(ctx context.Context, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	game, _, err := h.svc.ActiveGameFor(ctx, user.ID)
	if stderrors.Is(err, apperrors.ErrNotFound) {
		reply(b, user.ID, i18n.Get("You have no active game.", lang))
		return false, nil
	}
	if err != nil {
		return false, errors.WithMessage(err, "find game")
	}
	result, err := h.svc.Forfeit(ctx, game.ID, user.ID)
	if err != nil {
		if stderrors.Is(err, apperrors.ErrIllegalTransition) {
			reply(b, user.ID, i18n.Get("This game is already over.", lang))
			return false, nil
		}
		return false, errors.WithMessage(err, "forfeit")
	}
	reply(b, user.ID, i18n.Get("You forfeited the game.", lang))
	reply(b, result.WinnerID, i18n.Get("Your opponent forfeited. You win!", lang))
	return false, nil
}
