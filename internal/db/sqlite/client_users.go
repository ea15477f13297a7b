package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iamwavecut/tool"

	"github.com/AMOryC91/anonym/internal/db"
)

func (c *sqliteClient) UpsertUser(ctx context.Context, user *db.User) error {
	query := `
		INSERT INTO users (id, username, full_name)
		VALUES (:id, :username, :full_name)
		ON CONFLICT(id) DO UPDATE SET
		username = excluded.username,
		full_name = excluded.full_name,
		last_active = CURRENT_TIMESTAMP
	`
	if _, err := c.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("upsert user %d: %w", user.ID, err)
	}
	return nil
}

func (c *sqliteClient) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	user := &db.User{}
	err := c.db.GetContext(ctx, user, `SELECT * FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return user, nil
}

func (c *sqliteClient) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	user := &db.User{}
	err := c.db.GetContext(ctx, user, `SELECT * FROM users WHERE username = ? COLLATE NOCASE`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username %q: %w", username, err)
	}
	return user, nil
}

func (c *sqliteClient) TouchUser(ctx context.Context, userID int64) error {
	return tool.Err(c.db.ExecContext(ctx, `UPDATE users SET last_active = CURRENT_TIMESTAMP WHERE id = ?`, userID))
}

func (c *sqliteClient) SetUserEmoji(ctx context.Context, userID int64, emoji string) error {
	return tool.Err(c.db.ExecContext(ctx, `UPDATE users SET emoji = ? WHERE id = ?`, emoji, userID))
}

// SetBan upserts so that never-seen users can still be banned. An empty
// until means a permanent ban (NULL expiry).
func (c *sqliteClient) SetBan(ctx context.Context, userID int64, until string, reason string) error {
	var untilVal sql.NullString
	if until != "" {
		untilVal = sql.NullString{String: until, Valid: true}
	}
	query := `
		INSERT INTO users (id, banned, ban_until, ban_reason)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		banned = 1,
		ban_until = excluded.ban_until,
		ban_reason = excluded.ban_reason
	`
	if _, err := c.db.ExecContext(ctx, query, userID, untilVal, reason); err != nil {
		return fmt.Errorf("set ban for user %d: %w", userID, err)
	}
	return nil
}

func (c *sqliteClient) ClearBan(ctx context.Context, userID int64) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE users SET banned = 0, ban_until = NULL, ban_reason = '' WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("clear ban for user %d: %w", userID, err)
	}
	return nil
}

func (c *sqliteClient) SetVIPUntil(ctx context.Context, userID int64, until string) error {
	res, err := c.db.ExecContext(ctx, `UPDATE users SET vip_until = ? WHERE id = ?`, until, userID)
	if err != nil {
		return fmt.Errorf("set vip for user %d: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (c *sqliteClient) ClearVIP(ctx context.Context, userID int64) error {
	return tool.Err(c.db.ExecContext(ctx, `UPDATE users SET vip_until = NULL WHERE id = ?`, userID))
}

func (c *sqliteClient) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := c.db.SelectContext(ctx, &ids, `SELECT id FROM users WHERE banned = 0`)
	return ids, err
}

func (c *sqliteClient) ListBannedUsers(ctx context.Context) ([]db.User, error) {
	var users []db.User
	err := c.db.SelectContext(ctx, &users, `SELECT * FROM users WHERE banned = 1`)
	return users, err
}

func (c *sqliteClient) ListVIPUsers(ctx context.Context) ([]db.User, error) {
	var users []db.User
	err := c.db.SelectContext(ctx, &users,
		`SELECT * FROM users WHERE vip_until IS NOT NULL AND vip_until > datetime('now', 'localtime')`)
	return users, err
}

func (c *sqliteClient) ListVIPExpiringWithin(ctx context.Context, days int) ([]db.User, error) {
	var users []db.User
	err := c.db.SelectContext(ctx, &users, `
		SELECT * FROM users
		WHERE vip_until IS NOT NULL
		AND vip_until > datetime('now', 'localtime')
		AND vip_until <= datetime('now', 'localtime', ? || ' days')
	`, days)
	return users, err
}

func (c *sqliteClient) GetUserStats(ctx context.Context, userID int64) (*db.UserStats, error) {
	stats := &db.UserStats{}
	err := c.db.GetContext(ctx, stats, `
		SELECT
			(SELECT COUNT(*) FROM confessions WHERE to_user = ?) AS received,
			(SELECT COUNT(*) FROM confessions WHERE from_user = ?) AS sent,
			(SELECT COUNT(*) FROM reports WHERE reporter_id = ?) AS reports
	`, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("get stats for user %d: %w", userID, err)
	}
	return stats, nil
}
