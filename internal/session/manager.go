package session

import (
	"context"
	"log/slog"
	"sync"
)

// Manager tracks one session controller per session key, creating and
// seeding controllers lazily on first use. A controller lives for the
// process lifetime once created; "clear history" resets its state, it does
// not discard the controller.
type Manager struct {
	gw     Querier
	repo   SnapshotRepository
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
	broadcast   func(sessionKey string, st State)
}

// NewManager creates a session manager.
func NewManager(gw Querier, repo SnapshotRepository, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		gw:          gw,
		repo:        repo,
		cfg:         cfg,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// SetBroadcast installs the state push hook applied to every controller,
// existing and future.
func (m *Manager) SetBroadcast(fn func(sessionKey string, st State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcast = fn
	for key, c := range m.controllers {
		m.hook(key, c)
	}
}

func (m *Manager) hook(key string, c *Controller) {
	if m.broadcast == nil {
		c.SetOnChange(nil)
		return
	}
	fn := m.broadcast
	c.SetOnChange(func(st State) { fn(key, st) })
}

// Get returns the controller for a session key, creating and seeding it
// from the persisted snapshot on first use. Malformed or unavailable
// storage degrades to an empty log and is never surfaced.
func (m *Manager) Get(ctx context.Context, sessionKey string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.controllers[sessionKey]; ok {
		return c
	}

	c := newController(sessionKey, m.gw, m.repo, m.cfg, m.logger)

	turns, err := m.repo.GetSnapshot(ctx, sessionKey)
	if err != nil {
		m.logger.Warn("failed to load snapshot, starting empty",
			"session_key", sessionKey,
			"error", err,
		)
		turns = nil
	}
	c.seed(turns)

	m.hook(sessionKey, c)
	m.controllers[sessionKey] = c
	return c
}

// Len returns the number of live controllers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}
