package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AMOryC91/anonym/internal/db"
)

func (c *sqliteClient) CreateAchievement(ctx context.Context, name, description string) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO achievements (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		return 0, fmt.Errorf("create achievement: %w", err)
	}
	return res.LastInsertId()
}

func (c *sqliteClient) DeleteAchievement(ctx context.Context, achievementID int64) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM achievements WHERE id = ?`, achievementID); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM user_achievements WHERE achievement_id = ?`, achievementID)
	return err
}

func (c *sqliteClient) GetAchievementByName(ctx context.Context, name string) (*db.Achievement, error) {
	ach := &db.Achievement{}
	err := c.db.GetContext(ctx, ach, `SELECT * FROM achievements WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get achievement %q: %w", name, err)
	}
	return ach, nil
}

func (c *sqliteClient) ListAchievements(ctx context.Context) ([]db.Achievement, error) {
	var achievements []db.Achievement
	err := c.db.SelectContext(ctx, &achievements, `SELECT * FROM achievements ORDER BY id`)
	return achievements, err
}

func (c *sqliteClient) AwardAchievement(ctx context.Context, userID, achievementID int64) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_achievements (user_id, achievement_id) VALUES (?, ?)`,
		userID, achievementID)
	if err != nil {
		return false, fmt.Errorf("award achievement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (c *sqliteClient) RevokeAchievement(ctx context.Context, userID, achievementID int64) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM user_achievements WHERE user_id = ? AND achievement_id = ?`,
		userID, achievementID)
	return err
}

func (c *sqliteClient) ListUserAchievements(ctx context.Context, userID int64) ([]db.Achievement, error) {
	var achievements []db.Achievement
	err := c.db.SelectContext(ctx, &achievements, `
		SELECT a.id, a.name, a.description
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = ?
		ORDER BY ua.awarded_at
	`, userID)
	return achievements, err
}

func (c *sqliteClient) MarkNotified(ctx context.Context, userID int64, kind string) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notifications (user_id, kind, sent) VALUES (?, ?, 1)`, userID, kind)
	if err != nil {
		return false, fmt.Errorf("mark notified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
