package ingest

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forumarch/archiver/internal/pkg/archerr"
)

// cursorStore persists the adaptive poll interval across restarts in a
// local sqlite file, independent of the main Postgres database, so a
// process restart doesn't reset backoff all the way to PollIntervalMin.
// Nil when cfg.IngestCursorPath is unset -- every method is a no-op on a
// nil receiver.
type cursorStore struct {
	db *sql.DB
}

func openCursorStore(path string) (*cursorStore, error) {
	if path == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, archerr.Wrap(archerr.KindStorageError, "open ingest cursor store", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS poll_cursor (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		interval_ms INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, archerr.Wrap(archerr.KindStorageError, "create poll_cursor table", err)
	}
	return &cursorStore{db: db}, nil
}

func (c *cursorStore) loadInterval(ctx context.Context, fallback time.Duration) time.Duration {
	if c == nil {
		return fallback
	}
	var ms int64
	if err := c.db.QueryRowContext(ctx, `SELECT interval_ms FROM poll_cursor WHERE id = 1`).Scan(&ms); err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *cursorStore) saveInterval(ctx context.Context, interval time.Duration) {
	if c == nil {
		return
	}
	_, _ = c.db.ExecContext(ctx, `INSERT INTO poll_cursor (id, interval_ms, updated_at) VALUES (1, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET interval_ms = excluded.interval_ms, updated_at = excluded.updated_at`,
		interval.Milliseconds())
}

func (c *cursorStore) close() {
	if c != nil {
		c.db.Close()
	}
}
