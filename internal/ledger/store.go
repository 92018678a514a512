// Package ledger keeps the advisory record of announced BACON transfers in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"baconbot/internal/domain"

	_ "modernc.org/sqlite"
)

// DefaultListLimit caps Recent when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Store implements domain.LedgerSink and domain.LedgerReader on SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ domain.LedgerSink   = (*Store)(nil)
	_ domain.LedgerReader = (*Store)(nil)
)

// Open creates the database directory if needed, opens the ledger and
// applies pending migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create ledger directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open ledger: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger migration failed: %w", err)
	}

	logger.Info("ledger opened", "path", dbPath)
	return &Store{db: db, logger: logger}, nil
}

// Put stores value under key, replacing any previous entry with the same key.
// When value decodes as a TransferRecord its fields are indexed for listing.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	var rec domain.TransferRecord
	_ = json.Unmarshal(value, &rec) // opaque values are still stored

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO transfers
			(key, payload, id, from_user_id, from_user_name, to_user_display, amount, channel_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, string(value), rec.ID, rec.FromUserID, rec.FromUserName,
		rec.ToUserDisplay, rec.Amount, rec.ChannelID, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("ledger put %s: %w", key, err)
	}
	return nil
}

// Get returns the raw value stored under key, or sql.ErrNoRows.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM transfers WHERE key = ?", key).Scan(&payload)
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

// Recent returns up to limit transfers, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.TransferRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_user_id, from_user_name, to_user_display, amount, channel_id, timestamp
		FROM transfers
		ORDER BY timestamp DESC, created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger list: %w", err)
	}
	defer rows.Close()

	var out []domain.TransferRecord
	for rows.Next() {
		var r domain.TransferRecord
		if err := rows.Scan(&r.ID, &r.FromUserID, &r.FromUserName, &r.ToUserDisplay,
			&r.Amount, &r.ChannelID, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("ledger scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored transfers.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transfers").Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger count: %w", err)
	}
	return n, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
