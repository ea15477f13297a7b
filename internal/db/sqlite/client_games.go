package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AMOryC91/anonym/internal/db"
)

func (c *sqliteClient) CreateWhoisGame(ctx context.Context, creatorID int64, joinToken string) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO whois_games (creator_id, join_token) VALUES (?, ?)`, creatorID, joinToken)
	if err != nil {
		return 0, fmt.Errorf("create whois game: %w", err)
	}
	return res.LastInsertId()
}

func (c *sqliteClient) GetWhoisGame(ctx context.Context, gameID int64) (*db.WhoisGame, error) {
	game := &db.WhoisGame{}
	err := c.db.GetContext(ctx, game, `SELECT * FROM whois_games WHERE id = ?`, gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get whois game %d: %w", gameID, err)
	}
	return game, nil
}

func (c *sqliteClient) GetWhoisGameByToken(ctx context.Context, joinToken string) (*db.WhoisGame, error) {
	game := &db.WhoisGame{}
	err := c.db.GetContext(ctx, game, `SELECT * FROM whois_games WHERE join_token = ?`, joinToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get whois game by token: %w", err)
	}
	return game, nil
}

func (c *sqliteClient) GetWhoisGameByCreator(ctx context.Context, creatorID int64, status db.GameStatus) (*db.WhoisGame, error) {
	game := &db.WhoisGame{}
	err := c.db.GetContext(ctx, game,
		`SELECT * FROM whois_games WHERE creator_id = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		creatorID, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get whois game by creator %d: %w", creatorID, err)
	}
	return game, nil
}

func (c *sqliteClient) GetWhoisGameByOpponent(ctx context.Context, opponentID int64, status db.GameStatus) (*db.WhoisGame, error) {
	game := &db.WhoisGame{}
	err := c.db.GetContext(ctx, game,
		`SELECT * FROM whois_games WHERE opponent_id = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		opponentID, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get whois game by opponent %d: %w", opponentID, err)
	}
	return game, nil
}

func (c *sqliteClient) JoinWhoisGame(ctx context.Context, gameID, opponentID int64) (bool, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE whois_games
		SET opponent_id = ?, status = ?, questions_asked = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ? AND creator_id != ?
	`, opponentID, db.GameActive, gameID, db.GameWaiting, opponentID)
	if err != nil {
		return false, fmt.Errorf("join whois game %d: %w", gameID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (c *sqliteClient) IncrementQuestionsAsked(ctx context.Context, gameID int64, budget int) (bool, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE whois_games
		SET questions_asked = questions_asked + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ? AND questions_asked < ?
	`, gameID, db.GameActive, budget)
	if err != nil {
		return false, fmt.Errorf("increment questions of game %d: %w", gameID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (c *sqliteClient) CompleteWhoisGame(ctx context.Context, gameID, winnerID int64) (bool, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE whois_games
		SET status = ?, winner_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, db.GameCompleted, winnerID, gameID, db.GameActive)
	if err != nil {
		return false, fmt.Errorf("complete whois game %d: %w", gameID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (c *sqliteClient) DeleteWhoisGame(ctx context.Context, gameID int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM whois_games WHERE id = ?`, gameID)
	return err
}

func (c *sqliteClient) AddBattleParticipant(ctx context.Context, userID int64) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO battle_participants (user_id) VALUES (?)`, userID)
	if err != nil {
		return false, fmt.Errorf("add battle participant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (c *sqliteClient) RemoveBattleParticipant(ctx context.Context, userID int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM battle_participants WHERE user_id = ?`, userID)
	return err
}

func (c *sqliteClient) ListBattleParticipants(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := c.db.SelectContext(ctx, &ids, `SELECT user_id FROM battle_participants`)
	return ids, err
}

func (c *sqliteClient) ClearBattleParticipants(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM battle_participants`)
	return err
}
