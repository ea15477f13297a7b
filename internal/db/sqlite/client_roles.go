package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AMOryC91/anonym/internal/db"
)

func (c *sqliteClient) GetRole(ctx context.Context, userID int64) (string, error) {
	var role string
	err := c.db.GetContext(ctx, &role, `SELECT role FROM admin_roles WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get role of user %d: %w", userID, err)
	}
	return role, nil
}

func (c *sqliteClient) SetRole(ctx context.Context, userID int64, role string, grantedBy int64) error {
	query := `
		INSERT INTO admin_roles (user_id, role, granted_by)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		role = excluded.role,
		granted_by = excluded.granted_by,
		granted_at = CURRENT_TIMESTAMP
	`
	if _, err := c.db.ExecContext(ctx, query, userID, role, grantedBy); err != nil {
		return fmt.Errorf("set role of user %d: %w", userID, err)
	}
	return nil
}

func (c *sqliteClient) RemoveRole(ctx context.Context, userID int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM admin_roles WHERE user_id = ?`, userID)
	return err
}

func (c *sqliteClient) ListRoles(ctx context.Context) ([]db.AdminRole, error) {
	var roles []db.AdminRole
	err := c.db.SelectContext(ctx, &roles, `SELECT * FROM admin_roles ORDER BY user_id`)
	return roles, err
}

func (c *sqliteClient) AddAdminLog(ctx context.Context, entry *db.AdminLog) error {
	_, err := c.db.NamedExecContext(ctx,
		`INSERT INTO admin_logs (admin_id, action, details) VALUES (:admin_id, :action, :details)`, entry)
	return err
}

func (c *sqliteClient) ListAdminLogs(ctx context.Context, limit int) ([]db.AdminLog, error) {
	var entries []db.AdminLog
	err := c.db.SelectContext(ctx, &entries,
		`SELECT * FROM admin_logs ORDER BY created_at DESC LIMIT ?`, limit)
	return entries, err
}
