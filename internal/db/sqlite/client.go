package sqlite

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/AMOryC91/anonym/resources"
)

type sqliteClient struct {
	db *sqlx.DB
}

func NewSQLiteClient(ctx context.Context, dir, dbName string) (*sqliteClient, error) {
	dbx, err := sqlx.Open("sqlite", filepath.Join(dir, dbName))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// modernc sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY on concurrent row mutations.
	dbx.SetMaxOpenConns(1)

	if err := dbx.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.ExecContext(ctx, dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	if n > 0 {
		log.Infof("applied %d migrations", n)
	}

	return &sqliteClient{db: dbx}, nil
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}

func (c *sqliteClient) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
