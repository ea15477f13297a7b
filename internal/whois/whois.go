// Package whois runs the "Who am I?" guessing game: a creator shares a join
// token, an opponent joins, the creator gets three questions and then must
// name the opponent.
package whois

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"github.com/AMOryC91/anonym/internal/db"
	apperrors "github.com/AMOryC91/anonym/internal/errors"
)

// QuestionBudget is how many questions the creator gets before guessing.
const QuestionBudget = 3

type store interface {
	CreateWhoisGame(ctx context.Context, creatorID int64, joinToken string) (int64, error)
	GetWhoisGame(ctx context.Context, gameID int64) (*db.WhoisGame, error)
	GetWhoisGameByToken(ctx context.Context, joinToken string) (*db.WhoisGame, error)
	GetWhoisGameByCreator(ctx context.Context, creatorID int64, status db.GameStatus) (*db.WhoisGame, error)
	GetWhoisGameByOpponent(ctx context.Context, opponentID int64, status db.GameStatus) (*db.WhoisGame, error)
	JoinWhoisGame(ctx context.Context, gameID, opponentID int64) (bool, error)
	IncrementQuestionsAsked(ctx context.Context, gameID int64, budget int) (bool, error)
	CompleteWhoisGame(ctx context.Context, gameID, winnerID int64) (bool, error)
	GetUser(ctx context.Context, userID int64) (*db.User, error)
}

type Service struct {
	store    store
	newToken func() string
}

func NewService(store store) *Service {
	return &Service{
		store:    store,
		newToken: func() string { return uuid.NewRandom().String() },
	}
}

// Create opens a new waiting game. A creator with a waiting game already open
// gets that game back with ErrPolicyViolation so the handler can re-show the
// existing invite link.
func (s *Service) Create(ctx context.Context, creatorID int64) (*db.WhoisGame, error) {
	existing, err := s.store.GetWhoisGameByCreator(ctx, creatorID, db.GameWaiting)
	if err != nil && !stderrors.Is(err, db.ErrNotFound) {
		return nil, errors.WithMessage(err, "check open game")
	}
	if existing != nil {
		return existing, apperrors.ErrPolicyViolation
	}
	token := s.newToken()
	gameID, err := s.store.CreateWhoisGame(ctx, creatorID, token)
	if err != nil {
		return nil, errors.WithMessage(err, "create game")
	}
	return &db.WhoisGame{ID: gameID, JoinToken: token, CreatorID: creatorID, Status: db.GameWaiting}, nil
}

// Join attaches the opponent to a waiting game by its token. The creator
// cannot join their own game, and only the first joiner wins the guarded
// update; everyone after that sees an illegal transition.
func (s *Service) Join(ctx context.Context, token string, opponentID int64) (*db.WhoisGame, error) {
	game, err := s.store.GetWhoisGameByToken(ctx, token)
	if stderrors.Is(err, db.ErrNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.WithMessage(err, "resolve token")
	}
	if game.CreatorID == opponentID {
		return nil, apperrors.ErrPolicyViolation
	}
	joined, err := s.store.JoinWhoisGame(ctx, game.ID, opponentID)
	if err != nil {
		return nil, errors.WithMessage(err, "join game")
	}
	if !joined {
		return nil, apperrors.ErrIllegalTransition
	}
	return s.store.GetWhoisGame(ctx, game.ID)
}

// ActiveGameFor finds the active game the user participates in, if any, and
// reports whether they are the creator. Used to route free text.
func (s *Service) ActiveGameFor(ctx context.Context, userID int64) (*db.WhoisGame, bool, error) {
	game, err := s.store.GetWhoisGameByCreator(ctx, userID, db.GameActive)
	if err == nil {
		return game, true, nil
	}
	if !stderrors.Is(err, db.ErrNotFound) {
		return nil, false, err
	}
	game, err = s.store.GetWhoisGameByOpponent(ctx, userID, db.GameActive)
	if stderrors.Is(err, db.ErrNotFound) {
		return nil, false, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}
	return game, false, nil
}

// AskQuestion spends one question from the creator's budget and returns the
// game so the caller can relay the text to the opponent.
func (s *Service) AskQuestion(ctx context.Context, gameID, askerID int64, text string) (*db.WhoisGame, error) {
	game, err := s.gameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if askerID != game.CreatorID {
		return nil, apperrors.ErrUnauthorized
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.ErrPolicyViolation
	}
	bumped, err := s.store.IncrementQuestionsAsked(ctx, gameID, QuestionBudget)
	if err != nil {
		return nil, errors.WithMessage(err, "spend question")
	}
	if !bumped {
		// Either the game is no longer active or the budget is spent.
		return nil, apperrors.ErrIllegalTransition
	}
	return s.store.GetWhoisGame(ctx, gameID)
}

// Answer validates that the opponent may reply and returns the game for the
// relay. Answers are free and unlimited while the game is active.
func (s *Service) Answer(ctx context.Context, gameID, actorID int64) (*db.WhoisGame, error) {
	game, err := s.gameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if actorID != game.OpponentID {
		return nil, apperrors.ErrUnauthorized
	}
	if game.Status != db.GameActive {
		return nil, apperrors.ErrIllegalTransition
	}
	return game, nil
}

// GuessResult is the outcome of one guess attempt.
type GuessResult struct {
	Correct   bool
	Completed bool
	WinnerID  int64
	Game      *db.WhoisGame
}

// Guess checks the creator's guess against the opponent's identity. A correct
// guess completes the game for the creator. A miss with questions left keeps
// the game running; a miss with the budget spent hands the win to the
// opponent.
func (s *Service) Guess(ctx context.Context, gameID, actorID int64, guess string) (*GuessResult, error) {
	game, err := s.gameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if actorID != game.CreatorID {
		return nil, apperrors.ErrUnauthorized
	}
	if game.Status != db.GameActive {
		return nil, apperrors.ErrIllegalTransition
	}
	opponent, err := s.store.GetUser(ctx, game.OpponentID)
	if err != nil {
		return nil, errors.WithMessage(err, "load opponent")
	}

	result := &GuessResult{Game: game}
	if matches(guess, opponent) {
		result.Correct = true
		result.WinnerID = game.CreatorID
	} else if game.QuestionsAsked >= QuestionBudget {
		result.WinnerID = game.OpponentID
	} else {
		// Wrong guess but questions remain: the game stays active.
		return result, nil
	}

	completed, err := s.store.CompleteWhoisGame(ctx, gameID, result.WinnerID)
	if err != nil {
		return nil, errors.WithMessage(err, "complete game")
	}
	if !completed {
		return nil, apperrors.ErrIllegalTransition
	}
	result.Completed = true
	return result, nil
}

// Forfeit ends an active game in favor of the other participant.
func (s *Service) Forfeit(ctx context.Context, gameID, actorID int64) (*GuessResult, error) {
	game, err := s.gameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	var winnerID int64
	switch actorID {
	case game.CreatorID:
		winnerID = game.OpponentID
	case game.OpponentID:
		winnerID = game.CreatorID
	default:
		return nil, apperrors.ErrUnauthorized
	}
	completed, err := s.store.CompleteWhoisGame(ctx, gameID, winnerID)
	if err != nil {
		return nil, errors.WithMessage(err, "forfeit game")
	}
	if !completed {
		return nil, apperrors.ErrIllegalTransition
	}
	return &GuessResult{Completed: true, WinnerID: winnerID, Game: game}, nil
}

func (s *Service) gameByID(ctx context.Context, gameID int64) (*db.WhoisGame, error) {
	game, err := s.store.GetWhoisGame(ctx, gameID)
	if stderrors.Is(err, db.ErrNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.WithMessage(err, "get game")
	}
	return game, nil
}

// matches compares a guess against the opponent. Usernames match exactly
// (with or without a leading @); display names match exactly or as a
// substring of the full name. All comparisons are case-insensitive.
func matches(guess string, opponent *db.User) bool {
	guess = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(guess), "@")))
	if guess == "" {
		return false
	}
	if username := strings.ToLower(opponent.Username); username != "" && guess == username {
		return true
	}
	fullName := strings.ToLower(opponent.FullName)
	if fullName == "" {
		return false
	}
	return guess == fullName || strings.Contains(fullName, guess)
}
