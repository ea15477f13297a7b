package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AMOryC91/anonym/internal/db"
)

func (c *sqliteClient) CreateConfession(ctx context.Context, conf *db.Confession) (int64, error) {
	query := `
		INSERT INTO confessions (from_user, to_user, text, media_type, media_file_id,
			reveal_status, delivery_status, is_vip_sender, can_edit_until)
		VALUES (:from_user, :to_user, :text, :media_type, :media_file_id,
			:reveal_status, :delivery_status, :is_vip_sender, :can_edit_until)
	`
	res, err := c.db.NamedExecContext(ctx, query, conf)
	if err != nil {
		return 0, fmt.Errorf("create confession: %w", err)
	}
	return res.LastInsertId()
}

func (c *sqliteClient) GetConfession(ctx context.Context, confessionID int64) (*db.Confession, error) {
	conf := &db.Confession{}
	err := c.db.GetContext(ctx, conf, `SELECT * FROM confessions WHERE id = ?`, confessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get confession %d: %w", confessionID, err)
	}
	return conf, nil
}

func (c *sqliteClient) SetConfessionMedia(ctx context.Context, confessionID int64, mediaType, fileID string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE confessions SET media_type = ?, media_file_id = ? WHERE id = ?`,
		mediaType, fileID, confessionID)
	return err
}

func (c *sqliteClient) SetConfessionMessageID(ctx context.Context, confessionID int64, messageID int) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE confessions SET message_id = ? WHERE id = ?`, messageID, confessionID)
	return err
}

func (c *sqliteClient) SetConfessionDeliveryStatus(ctx context.Context, confessionID int64, status db.DeliveryStatus) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE confessions SET delivery_status = ? WHERE id = ?`, status, confessionID)
	return err
}

// AdvanceRevealStatus is the compare-and-set behind the one-way reveal
// protocol: the WHERE clause rejects transitions from any other state.
func (c *sqliteClient) AdvanceRevealStatus(ctx context.Context, confessionID int64, from, to db.RevealStatus) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`UPDATE confessions SET reveal_status = ? WHERE id = ? AND reveal_status = ?`,
		to, confessionID, from)
	if err != nil {
		return false, fmt.Errorf("advance reveal status of confession %d: %w", confessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (c *sqliteClient) DeleteConfession(ctx context.Context, confessionID int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM confessions WHERE id = ?`, confessionID)
	return err
}

func (c *sqliteClient) PurgeConfessionsOlderThan(ctx context.Context, days int) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM confessions WHERE created_at < datetime('now', 'localtime', '-' || ? || ' days')`, days)
	if err != nil {
		return 0, fmt.Errorf("purge confessions: %w", err)
	}
	return res.RowsAffected()
}

func (c *sqliteClient) CountConfessionsReceived(ctx context.Context, userID int64) (int, error) {
	var count int
	err := c.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM confessions WHERE to_user = ? AND delivery_status = ?`,
		userID, db.DeliveryDelivered)
	return count, err
}
