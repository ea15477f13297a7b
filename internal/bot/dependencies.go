package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/AMOryC91/anonym/internal/db"
)

// ServiceBot defines bot-specific operations
type ServiceBot interface {
	GetBot() *api.BotAPI
}

// ServiceDB defines database-specific operations
type ServiceDB interface {
	GetDB() db.Client
}

// Service defines the core bot service interface
type Service interface {
	ServiceBot
	ServiceDB
	GetLanguage(ctx context.Context, user *api.User) string
}

// Handler defines the interface for all update handlers in the system
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}

// Entitlements is the slice of the entitlement engine the gates need.
type Entitlements interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
	IsModerator(ctx context.Context, userID int64) (bool, error)
}

type togglesKey struct{}

// WithToggles attaches the per-action toggle snapshot to the context so the
// handler chain sees the same switches the gates saw.
func WithToggles(ctx context.Context, t db.Toggles) context.Context {
	return context.WithValue(ctx, togglesKey{}, t)
}

func TogglesFrom(ctx context.Context) db.Toggles {
	if t, ok := ctx.Value(togglesKey{}).(db.Toggles); ok {
		return t
	}
	return db.Toggles{}
}
