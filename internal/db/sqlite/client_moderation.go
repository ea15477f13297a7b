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

func (c *sqliteClient) AddBlacklistWord(ctx context.Context, word string) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO blacklist_words (word) VALUES (?)`, strings.ToLower(word))
	if err != nil {
		return false, fmt.Errorf("add blacklist word: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (c *sqliteClient) RemoveBlacklistWord(ctx context.Context, word string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM blacklist_words WHERE word = ?`, strings.ToLower(word))
	return err
}

func (c *sqliteClient) ListBlacklistWords(ctx context.Context) ([]string, error) {
	var words []string
	err := c.db.SelectContext(ctx, &words, `SELECT word FROM blacklist_words ORDER BY word`)
	return words, err
}

// AddWarning inserts and counts in one transaction so two racing warnings
// cannot both observe a pre-threshold total.
func (c *sqliteClient) AddWarning(ctx context.Context, w *db.Warning) (int, error) {
	var count int
	err := c.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO warnings (user_id, admin_id, reason) VALUES (:user_id, :admin_id, :reason)`, w); err != nil {
			return fmt.Errorf("insert warning: %w", err)
		}
		if err := tx.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM warnings WHERE user_id = ?`, w.UserID); err != nil {
			return fmt.Errorf("count warnings: %w", err)
		}
		return nil
	})
	return count, err
}

func (c *sqliteClient) RemoveLatestWarning(ctx context.Context, userID int64) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM warnings WHERE id = (
			SELECT id FROM warnings WHERE user_id = ? ORDER BY id DESC LIMIT 1
		)`, userID)
	return err
}

func (c *sqliteClient) ListWarnings(ctx context.Context, userID int64) ([]db.Warning, error) {
	var warnings []db.Warning
	err := c.db.SelectContext(ctx, &warnings,
		`SELECT * FROM warnings WHERE user_id = ? ORDER BY created_at DESC`, userID)
	return warnings, err
}

func (c *sqliteClient) CreateReport(ctx context.Context, confessionID, reporterID int64) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO reports (confession_id, reporter_id) VALUES (?, ?)`, confessionID, reporterID)
	if err != nil {
		return 0, fmt.Errorf("create report: %w", err)
	}
	return res.LastInsertId()
}

func (c *sqliteClient) GetReport(ctx context.Context, reportID int64) (*db.Report, error) {
	report := &db.Report{}
	err := c.db.GetContext(ctx, report, `SELECT * FROM reports WHERE id = ?`, reportID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %d: %w", reportID, err)
	}
	return report, nil
}

func (c *sqliteClient) DeleteReport(ctx context.Context, reportID int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, reportID)
	return err
}

func (c *sqliteClient) ListReports(ctx context.Context) ([]db.Report, error) {
	var reports []db.Report
	err := c.db.SelectContext(ctx, &reports, `SELECT * FROM reports ORDER BY created_at`)
	return reports, err
}

func (c *sqliteClient) PurgeReportsOlderThan(ctx context.Context, days int) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM reports WHERE created_at < datetime('now', 'localtime', '-' || ? || ' days')`, days)
	if err != nil {
		return 0, fmt.Errorf("purge reports: %w", err)
	}
	return res.RowsAffected()
}
