package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/AMOryC91/anonym/internal/db"
	"github.com/AMOryC91/anonym/internal/i18n"
	"github.com/AMOryC91/anonym/internal/observability"
)

const (
	UpdateTimeout = 5 * time.Minute
)

type UpdateProcessor struct {
	s              Service
	entitlements   Entitlements
	updateHandlers []Handler
	handlerNames   []string
}

var registeredHandlers = make(map[string]Handler)

func RegisterUpdateHandler(title string, handler Handler) {
	registeredHandlers[title] = handler
}

// NewUpdateProcessor wires the gates and the named handlers in order.
func NewUpdateProcessor(s Service, entitlements Entitlements, handlerNames []string) *UpdateProcessor {
	enabledHandlers := make([]Handler, 0)
	enabledNames := make([]string, 0)
	for _, handlerName := range handlerNames {
		if _, ok := registeredHandlers[handlerName]; !ok || registeredHandlers[handlerName] == nil {
			log.Warnf("no registered handler: %s", handlerName)
			continue
		}
		enabledHandlers = append(enabledHandlers, registeredHandlers[handlerName])
		enabledNames = append(enabledNames, handlerName)
	}

	return &UpdateProcessor{
		s:              s,
		entitlements:   entitlements,
		updateHandlers: enabledHandlers,
		handlerNames:   enabledNames,
	}
}

// Process runs one inbound update through the ban gate, the maintenance gate
// and then the handler chain. One update, one outcome; handler errors are
// returned for logging, never panic the loop.
func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	finish := observability.StartUpdateTimer()

	var updateTime time.Time
	switch {
	case u.Message != nil:
		updateTime = time.Unix(int64(u.Message.Date), 0)
	case u.EditedMessage != nil:
		updateTime = time.Unix(int64(u.EditedMessage.Date), 0)
	default:
		updateTime = time.Now()
	}
	if time.Since(updateTime) > UpdateTimeout {
		log.WithFields(log.Fields{
			"update_time": updateTime,
			"age":         time.Since(updateTime),
		}).Debug("Skipping outdated update")
		observability.RecordUpdate("outdated")
		finish("outdated")
		return nil
	}

	chat := u.FromChat()
	user := u.SentFrom()
	if user == nil {
		observability.RecordUpdate("skipped")
		finish("skipped")
		return nil
	}

	banned, err := up.entitlements.IsBanned(ctx, user.ID)
	if err != nil {
		finish("error")
		return errors.WithMessage(err, "ban gate")
	}
	if banned {
		// Banned users get silence, not an explanation.
		observability.RecordUpdate("banned")
		finish("banned")
		return nil
	}

	toggles, err := db.LoadToggles(ctx, up.s.GetDB())
	if err != nil {
		finish("error")
		return errors.WithMessage(err, "load toggles")
	}
	if toggles.Maintenance {
		bypass, err := up.entitlements.IsModerator(ctx, user.ID)
		if err != nil {
			finish("error")
			return errors.WithMessage(err, "maintenance gate")
		}
		if !bypass {
			up.replyMaintenance(ctx, chat, user, toggles)
			observability.RecordUpdate("maintenance")
			finish("maintenance")
			return nil
		}
	}
	ctx = WithToggles(ctx, toggles)

	for _, handler := range up.updateHandlers {
		if handler == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			proceed, err := handler.Handle(ctx, u, chat, user)
			if err != nil {
				observability.RecordUpdate("error")
				finish("error")
				return errors.WithMessage(err, "handling error")
			}
			if !proceed {
				observability.RecordUpdate("handled")
				finish("handled")
				return nil
			}
		}
	}
	observability.RecordUpdate("unhandled")
	finish("unhandled")
	return nil
}

func (up *UpdateProcessor) replyMaintenance(ctx context.Context, chat *api.Chat, user *api.User, toggles db.Toggles) {
	if chat == nil {
		return
	}
	lang := up.s.GetLanguage(ctx, user)
	if _, err := up.s.GetBot().Send(api.NewMessage(chat.ID, MaintenanceText(toggles, lang))); err != nil {
		log.WithError(err).Debug("cant send maintenance notice")
	}
}

// MaintenanceText builds the localized rejection for a gated user, carrying
// the free-text reason and expected-back mark when the admins set them.
func MaintenanceText(toggles db.Toggles, lang string) string {
	text := i18n.Get("The bot is under maintenance, please try again later.", lang)
	if reason := strings.TrimSpace(toggles.MaintenanceReason); reason != "" {
		text += "\n" + reason
	}
	if until := strings.TrimSpace(toggles.MaintenanceUntil); until != "" {
		text += "\n" + fmt.Sprintf(i18n.Get("Expected back: %s", lang), until)
	}
	return text
}
