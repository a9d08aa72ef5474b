// Package session implements the chat session core: the in-memory message
// log, the controller that orchestrates sends against the assistant
// gateway, and the per-user controller registry.
package session

import (
	"sync"

	"github.com/ashureev/docschat/internal/domain"
)

// MessageStore is the ordered in-memory log of conversation turns and the
// single source of truth while a session is live. Append is the only growth
// path; no operation mutates an existing turn.
type MessageStore struct {
	mu    sync.RWMutex
	turns []domain.Turn
}

// NewMessageStore creates an empty message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Append adds a turn to the end of the log.
func (s *MessageStore) Append(t domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

// ReplaceAll replaces the log wholesale. It exists for exactly one purpose:
// seeding the store from a persisted snapshot at initialization.
func (s *MessageStore) ReplaceAll(turns []domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append([]domain.Turn(nil), turns...)
}

// Clear empties the log.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// Snapshot returns a copy of the log in append order. The returned slice is
// never nil, so it serializes as [] rather than null.
func (s *MessageStore) Snapshot() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns in the log.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}
