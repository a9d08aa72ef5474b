package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ashureev/docschat/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return repo
}

func sampleTurns() []domain.Turn {
	return []domain.Turn{
		domain.NewUserTurn("What is ROS 2?"),
		domain.NewAssistantTurn("ROS 2 is...", []domain.Source{
			{Title: "ROS 2 Intro", URL: "/docs/ros2", Module: "robotics", Chapter: "1"},
		}),
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	turns := sampleTurns()

	if err := repo.PutSnapshot(ctx, "anon_a", turns); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}

	got, err := repo.GetSnapshot(ctx, "anon_a")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if !reflect.DeepEqual(got, turns) {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", got, turns)
	}
}

func TestGetSnapshot_Missing(t *testing.T) {
	repo := newTestStore(t)

	got, err := repo.GetSnapshot(context.Background(), "anon_missing")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for a missing snapshot, got %+v", got)
	}
}

func TestPutSnapshot_ReplacesWholesale(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.PutSnapshot(ctx, "anon_a", sampleTurns()); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}
	replacement := []domain.Turn{domain.NewUserTurn("only one")}
	if err := repo.PutSnapshot(ctx, "anon_a", replacement); err != nil {
		t.Fatalf("Second PutSnapshot failed: %v", err)
	}

	got, err := repo.GetSnapshot(ctx, "anon_a")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != replacement[0].ID {
		t.Errorf("Expected wholesale replacement, got %+v", got)
	}
}

func TestPutSnapshot_EmptyMeansCleared(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.PutSnapshot(ctx, "anon_a", sampleTurns()); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}
	if err := repo.PutSnapshot(ctx, "anon_a", nil); err != nil {
		t.Fatalf("PutSnapshot(nil) failed: %v", err)
	}

	got, err := repo.GetSnapshot(ctx, "anon_a")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty snapshot after clear, got %d turns", len(got))
	}
}

func TestGetSnapshot_Malformed(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	sqlite, ok := repo.(*SQLiteStore)
	if !ok {
		t.Fatalf("Expected *SQLiteStore, got %T", repo)
	}
	now := time.Now().Unix()
	if _, err := sqlite.db.ExecContext(ctx,
		`INSERT INTO chat_snapshots (session_key, turns_json, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"anon_bad", "{not json", now, now,
	); err != nil {
		t.Fatalf("Failed to plant malformed row: %v", err)
	}

	_, err := repo.GetSnapshot(ctx, "anon_bad")
	if !errors.Is(err, ErrMalformedSnapshot) {
		t.Errorf("Expected ErrMalformedSnapshot, got %v", err)
	}
}

func TestGetSnapshot_InvalidTurnRejected(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	sqlite := repo.(*SQLiteStore)
	now := time.Now().Unix()
	if _, err := sqlite.db.ExecContext(ctx,
		`INSERT INTO chat_snapshots (session_key, turns_json, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"anon_bad", `[{"id":"x","role":"system","content":"?"}]`, now, now,
	); err != nil {
		t.Fatalf("Failed to plant invalid row: %v", err)
	}

	_, err := repo.GetSnapshot(ctx, "anon_bad")
	if !errors.Is(err, ErrMalformedSnapshot) {
		t.Errorf("Expected ErrMalformedSnapshot for invalid role, got %v", err)
	}
}

func TestCleanupStaleSnapshots(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.PutSnapshot(ctx, "anon_old", sampleTurns()); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}

	// Age the row past the TTL.
	sqlite := repo.(*SQLiteStore)
	old := time.Now().Add(-48 * time.Hour).Unix()
	if _, err := sqlite.db.ExecContext(ctx,
		`UPDATE chat_snapshots SET updated_at = ? WHERE session_key = ?`, old, "anon_old",
	); err != nil {
		t.Fatalf("Failed to age row: %v", err)
	}

	deleted, err := repo.CleanupStaleSnapshots(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupStaleSnapshots failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted row, got %d", deleted)
	}

	got, err := repo.GetSnapshot(ctx, "anon_old")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected snapshot gone after cleanup, got %+v", got)
	}
}

func TestPing(t *testing.T) {
	repo := newTestStore(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
