package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (c *sqliteClient) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := c.db.GetContext(ctx, &value, `SELECT value FROM admin_settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (c *sqliteClient) SetSetting(ctx context.Context, key string, value string) error {
	query := `
		INSERT INTO admin_settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	if _, err := c.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
