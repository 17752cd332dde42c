// Package archive keeps a durable sqlite record of every captured pair
// across runs. The flat exports are regenerated per run; the archive is
// the queryable history.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/paagrab/internal/checkpoint"
	"github.com/hazyhaar/paagrab/internal/dedup"
)

// Schema is applied on open. The unique index makes inserts idempotent
// across resumed runs.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
    run_id        TEXT NOT NULL,
    query         TEXT NOT NULL,
    question      TEXT NOT NULL,
    question_norm TEXT NOT NULL,
    answer        TEXT NOT NULL,
    captured_at   INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_items_dedup ON items(query, question_norm);
CREATE INDEX IF NOT EXISTS idx_items_run ON items(run_id);
`

// Archive wraps the items database.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) the archive at path with production-safe
// pragmas applied via EXEC, and ensures the schema. The caller must
// blank-import modernc.org/sqlite.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("archive: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("archive: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the database.
func (a *Archive) Close() error { return a.db.Close() }

// Insert records one captured item. Re-inserting the same (query,
// normalized question) is a no-op, so resumed runs can replay safely.
func (a *Archive) Insert(ctx context.Context, runID string, item checkpoint.Item, capturedAt time.Time) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO items (run_id, query, question, question_norm, answer, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(query, question_norm) DO NOTHING`,
		runID, item.Query, item.Question, dedup.Normalize(item.Question),
		item.Answer, capturedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("archive: insert: %w", err)
	}
	return nil
}

// Count returns the total number of archived items.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("archive: count: %w", err)
	}
	return n, nil
}

// ListRun returns the items captured under one run, in capture order.
func (a *Archive) ListRun(ctx context.Context, runID string) ([]checkpoint.Item, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT query, question, answer FROM items
		WHERE run_id = ? ORDER BY captured_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer rows.Close()

	var items []checkpoint.Item
	for rows.Next() {
		var it checkpoint.Item
		if err := rows.Scan(&it.Query, &it.Question, &it.Answer); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
