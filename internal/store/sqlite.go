package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/docschat/internal/domain"
	"github.com/ashureev/docschat/internal/shared"
	_ "modernc.org/sqlite"
)

// ErrMalformedSnapshot indicates a stored snapshot that failed to decode.
// Callers treat this as "no history" rather than surfacing it.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	snapshotMu sync.Mutex // Serializes snapshot writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chat_snapshots (
		session_key TEXT PRIMARY KEY,
		turns_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_snapshots_updated ON chat_snapshots(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSnapshot retrieves the stored turn snapshot for a session key.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, sessionKey string) ([]domain.Turn, error) {
	query := `SELECT turns_json FROM chat_snapshots WHERE session_key = ?`

	var turnsJSON string
	err := s.db.QueryRowContext(ctx, query, sessionKey).Scan(&turnsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot row: %w", err)
	}

	var turns []domain.Turn
	if err := json.Unmarshal([]byte(turnsJSON), &turns); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}
	for _, t := range turns {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: invalid turn %q", ErrMalformedSnapshot, t.ID)
		}
	}

	return turns, nil
}

// PutSnapshot replaces the stored snapshot for a session key.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, sessionKey string, turns []domain.Turn) error {
	if turns == nil {
		turns = []domain.Turn{}
	}
	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err = s.putSnapshotOnce(ctx, sessionKey, string(turnsJSON))
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
			slog.Debug("PutSnapshot failed with SQLITE_BUSY, retrying",
				"session_key", sessionKey,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		// Non-retryable error or max retries exceeded
		return fmt.Errorf("put snapshot for %s after %d attempts: %w", sessionKey, i+1, err)
	}

	return err
}

func (s *SQLiteStore) putSnapshotOnce(ctx context.Context, sessionKey, turnsJSON string) error {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	query := `
		INSERT INTO chat_snapshots (session_key, turns_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			turns_json = excluded.turns_json,
			updated_at = excluded.updated_at`

	now := time.Now().Unix()
	if _, err := s.db.ExecContext(ctx, query, sessionKey, turnsJSON, now, now); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// CleanupStaleSnapshots removes snapshots not written to within ttl.
func (s *SQLiteStore) CleanupStaleSnapshots(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `DELETE FROM chat_snapshots WHERE updated_at < ?`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup stale snapshots: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
