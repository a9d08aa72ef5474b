// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/docschat/internal/domain"
)

// Repository defines the interface for persisting chat session snapshots.
// One snapshot row exists per session key and holds the truncated tail of
// the conversation log; writes replace the value wholesale.
type Repository interface {
	// GetSnapshot retrieves the stored turn snapshot for a session key.
	// A missing snapshot yields (nil, nil); a malformed one yields an error
	// the caller is expected to treat as "no history".
	GetSnapshot(ctx context.Context, sessionKey string) ([]domain.Turn, error)

	// PutSnapshot replaces the stored snapshot for a session key.
	// An empty or nil slice stores an empty snapshot (clear semantics).
	PutSnapshot(ctx context.Context, sessionKey string, turns []domain.Turn) error

	// CleanupStaleSnapshots removes snapshots not written to for longer
	// than ttl, returning the number of rows deleted.
	CleanupStaleSnapshots(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
