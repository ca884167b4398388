package ingestlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteLedger struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLite opens (creating if needed) a sqlite ledger at dsn. A ttl > 0
// expires batch records, bounding the table for spools that rotate names.
func NewSQLite(dsn string, ttl time.Duration) (*SQLiteLedger, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("sqlite ttl must be >= 0")
	}
	if err := ensureDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ledger := &SQLiteLedger{db: db, ttl: ttl}
	if err := ledger.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

func (l *SQLiteLedger) Ingested(ctx context.Context, comicID string) (map[string]bool, error) {
	if err := l.prune(ctx); err != nil {
		return nil, err
	}
	rows, err := l.db.QueryContext(ctx, "SELECT batch FROM ingested_batches WHERE comic_id = ?", comicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[string]bool{}
	for rows.Next() {
		var batch string
		if err := rows.Scan(&batch); err != nil {
			return nil, err
		}
		seen[batch] = true
	}
	return seen, rows.Err()
}

func (l *SQLiteLedger) Mark(ctx context.Context, comicID string, batches []string) error {
	if len(batches) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO ingested_batches (comic_id, batch, ingested_at) VALUES (?, ?, ?) "+
			"ON CONFLICT(comic_id, batch) DO UPDATE SET ingested_at = excluded.ingested_at")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, batch := range batches {
		if batch == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, comicID, batch, now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (l *SQLiteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *SQLiteLedger) prune(ctx context.Context) error {
	if l.ttl <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-l.ttl)
	_, err := l.db.ExecContext(ctx, "DELETE FROM ingested_batches WHERE ingested_at < ?", cutoff)
	return err
}

func (l *SQLiteLedger) ensureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS ingested_batches (
		comic_id TEXT NOT NULL,
		batch TEXT NOT NULL,
		ingested_at TIMESTAMP NOT NULL,
		PRIMARY KEY (comic_id, batch)
	)`
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	return nil
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	return nil
}
