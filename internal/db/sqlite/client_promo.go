package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/AMOryC91/anonym/internal/db"
)

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c *sqliteClient) CreatePromoCode(ctx context.Context, p *db.PromoCode) error {
	p.Code = normalizeCode(p.Code)
	query := `
		INSERT INTO promo_codes (code, activations, activations_left, vip_days, created_by, expires_at)
		VALUES (:code, :activations, :activations_left, :vip_days, :created_by, :expires_at)
	`
	if _, err := c.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("create promo code: %w", err)
	}
	return nil
}

func (c *sqliteClient) GetPromoCode(ctx context.Context, code string) (*db.PromoCode, error) {
	promo := &db.PromoCode{}
	err := c.db.GetContext(ctx, promo, `SELECT * FROM promo_codes WHERE code = ?`, normalizeCode(code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get promo code: %w", err)
	}
	return promo, nil
}

func (c *sqliteClient) DeletePromoCode(ctx context.Context, code string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM promo_codes WHERE code = ?`, normalizeCode(code))
	return err
}

func (c *sqliteClient) ListPromoCodes(ctx context.Context) ([]db.PromoCode, error) {
	var codes []db.PromoCode
	err := c.db.SelectContext(ctx, &codes, `SELECT * FROM promo_codes ORDER BY created_at DESC`)
	return codes, err
}

// ActivatePromoCode is one transaction: the guarded decrement, the
// activation insert and the VIP grant either all land or none do, so
// concurrent activators cannot oversell a code and a consumed activation
// always carries its VIP days.
func (c *sqliteClient) ActivatePromoCode(ctx context.Context, userID int64, code string) (int, error) {
	code = normalizeCode(code)
	var vipDays int
	err := c.inTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists,
			`SELECT COUNT(*) FROM promo_activations WHERE user_id = ? AND promo_code = ?`,
			userID, code); err != nil {
			return fmt.Errorf("check activation: %w", err)
		}
		if exists > 0 {
			return db.ErrPromoAlreadyActivated
		}

		promo := &db.PromoCode{}
		err := tx.GetContext(ctx, promo, `
			SELECT * FROM promo_codes
			WHERE code = ? AND (expires_at IS NULL OR expires_at > datetime('now', 'localtime'))
		`, code)
		if errors.Is(err, sql.ErrNoRows) {
			return db.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get promo: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE promo_codes SET activations_left = activations_left - 1
			 WHERE code = ? AND activations_left > 0`, code)
		if err != nil {
			return fmt.Errorf("decrement activations: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return db.ErrPromoExhausted
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO promo_activations (user_id, promo_code) VALUES (?, ?)`,
			userID, code); err != nil {
			return fmt.Errorf("record activation: %w", err)
		}

		// Timestamps compare lexicographically, so MAX picks a still-running
		// VIP period over now and the grant stacks instead of resetting.
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET vip_until = datetime(
				MAX(COALESCE(vip_until, ''), datetime('now', 'localtime')),
				'+' || ? || ' days')
			WHERE id = ?`, promo.VIPDays, userID); err != nil {
			return fmt.Errorf("grant vip: %w", err)
		}
		vipDays = promo.VIPDays
		return nil
	})
	if err != nil {
		return 0, err
	}
	return vipDays, nil
}

func (c *sqliteClient) ListPromoActivations(ctx context.Context, code string) ([]db.PromoActivation, error) {
	var activations []db.PromoActivation
	err := c.db.SelectContext(ctx, &activations,
		`SELECT * FROM promo_activations WHERE promo_code = ? ORDER BY activated_at DESC`,
		normalizeCode(code))
	return activations, err
}
