package db

import (
	"context"
	"errors"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrPromoExhausted        = errors.New("promo code exhausted")
	ErrPromoAlreadyActivated = errors.New("promo code already activated")
)

// Feature toggle and maintenance keys in admin_settings. Read fresh on every
// gated action so each check reflects the latest admin write.
const (
	KeyMaintenanceEnabled = "maintenance_enabled"
	KeyMaintenanceReason  = "maintenance_reason"
	KeyMaintenanceUntil   = "maintenance_until"
	KeyWhoisEnabled       = "whois_enabled"
	KeyBattleEnabled      = "battle_enabled"
)

// Toggles is a point-in-time snapshot of the admin switches, taken at the
// start of handling one inbound action and passed down explicitly.
type Toggles struct {
	Maintenance       bool
	MaintenanceReason string
	MaintenanceUntil  string
	WhoisEnabled      bool
	BattleEnabled     bool
}

func LoadToggles(ctx context.Context, s SettingsStore) (Toggles, error) {
	t := Toggles{}
	var firstErr error
	get := func(key string) string {
		v, err := s.GetSetting(ctx, key)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return v
	}
	t.Maintenance = get(KeyMaintenanceEnabled) == "1"
	t.MaintenanceReason = get(KeyMaintenanceReason)
	t.MaintenanceUntil = get(KeyMaintenanceUntil)
	t.WhoisEnabled = get(KeyWhoisEnabled) == "1"
	t.BattleEnabled = get(KeyBattleEnabled) == "1"
	return t, firstErr
}
