package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/docschat/internal/domain"
	"github.com/ashureev/docschat/internal/gateway"
)

// DefaultHistoryLimit is the number of most-recent turns kept in the
// persisted snapshot.
const DefaultHistoryLimit = 50

// fallbackFailureMessage is used when a gateway failure carries no
// descriptive message of its own.
const fallbackFailureMessage = "An unexpected error occurred"

var (
	// ErrEmptyQuery means the input was empty after trimming. The send is a
	// no-op: no turn is created and no gateway call is made.
	ErrEmptyQuery = errors.New("empty query")

	// ErrBusy means a send is already in flight. The second send is rejected
	// outright — no queueing, no cancellation of the first — so responses
	// always append in the order their requests were issued.
	ErrBusy = errors.New("send already in flight")
)

// Querier is the gateway boundary the controller suspends on.
type Querier interface {
	Query(ctx context.Context, text string) (*gateway.Answer, error)
}

// SnapshotRepository is the subset of the store the session layer uses.
type SnapshotRepository interface {
	GetSnapshot(ctx context.Context, sessionKey string) ([]domain.Turn, error)
	PutSnapshot(ctx context.Context, sessionKey string, turns []domain.Turn) error
}

// State is the observable session state exposed to consumers. Consumers
// never mutate it; all changes go through controller actions.
type State struct {
	Turns       []domain.Turn `json:"turns"`
	IsBusy      bool          `json:"is_busy"`
	LastError   string        `json:"last_error,omitempty"`
	IsPanelOpen bool          `json:"is_panel_open"`
}

// Config holds session tuning knobs.
type Config struct {
	// HistoryLimit caps how many trailing turns the persisted snapshot keeps.
	HistoryLimit int
}

// DefaultConfig returns default session configuration.
func DefaultConfig() Config {
	return Config{HistoryLimit: DefaultHistoryLimit}
}

// Controller owns the state of one chat session. It appends user turns,
// invokes the gateway, appends assistant or error turns, manages the busy
// flag and the error slot, and mirrors every log change into the snapshot
// repository under the retention bound.
type Controller struct {
	key    string
	store  *MessageStore
	gw     Querier
	repo   SnapshotRepository
	limit  int
	logger *slog.Logger

	mu        sync.Mutex
	busy      bool
	lastError string
	panelOpen bool
	onChange  func(State)
}

func newController(sessionKey string, gw Querier, repo SnapshotRepository, cfg Config, logger *slog.Logger) *Controller {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		key:    sessionKey,
		store:  NewMessageStore(),
		gw:     gw,
		repo:   repo,
		limit:  cfg.HistoryLimit,
		logger: logger,
	}
}

// NewController creates a standalone controller. The manager is the normal
// construction path; this exists for wiring a single session directly.
func NewController(sessionKey string, gw Querier, repo SnapshotRepository, cfg Config, logger *slog.Logger) *Controller {
	return newController(sessionKey, gw, repo, cfg, logger)
}

// seed replaces the log with a persisted snapshot. Called once, before the
// controller is handed to any consumer.
func (c *Controller) seed(turns []domain.Turn) {
	if len(turns) == 0 {
		return
	}
	c.store.ReplaceAll(turns)
}

// Send runs one full send cycle: user turn, gateway query, result turn.
// It returns ErrEmptyQuery or ErrBusy without touching state; any gateway
// failure is absorbed into the transcript and the error slot, never
// returned. The busy flag is released on every exit path.
func (c *Controller) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyQuery
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.lastError = ""
	c.store.Append(domain.NewUserTurn(content))
	c.mu.Unlock()

	// Guaranteed release even if the gateway panics.
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	c.persist(ctx)
	c.notify()

	answer, err := c.gw.Query(ctx, content)

	c.mu.Lock()
	if err != nil {
		msg := failureMessage(err)
		c.lastError = msg
		c.store.Append(domain.NewErrorTurn(msg))

		var backendErr *gateway.BackendError
		if errors.As(err, &backendErr) {
			c.logger.Warn("send failed",
				"session_key", c.key,
				"code", backendErr.Code,
				"message", msg,
			)
		} else {
			c.logger.Warn("send failed", "session_key", c.key, "message", msg)
		}
	} else {
		c.store.Append(domain.NewAssistantTurn(answer.Response, answer.Sources))
	}
	c.busy = false
	c.mu.Unlock()

	c.persist(ctx)
	c.notify()
	return nil
}

// Clear empties the log and the error slot and replaces the persisted
// snapshot with an empty one. Idempotent.
func (c *Controller) Clear(ctx context.Context) {
	c.mu.Lock()
	c.store.Clear()
	c.lastError = ""
	c.mu.Unlock()

	c.persist(ctx)
	c.notify()
}

// Toggle flips the panel-open flag. Message state is untouched.
func (c *Controller) Toggle() {
	c.mu.Lock()
	c.panelOpen = !c.panelOpen
	c.mu.Unlock()
	c.notify()
}

// SetPanelOpen sets the panel-open flag explicitly.
func (c *Controller) SetPanelOpen(open bool) {
	c.mu.Lock()
	c.panelOpen = open
	c.mu.Unlock()
	c.notify()
}

// State returns a copy of the observable session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Turns:       c.store.Snapshot(),
		IsBusy:      c.busy,
		LastError:   c.lastError,
		IsPanelOpen: c.panelOpen,
	}
}

// SetOnChange installs a hook invoked with the new state after every
// mutation. Used by the websocket stream; nil disables it.
func (c *Controller) SetOnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// persist writes the trailing HistoryLimit turns as the new snapshot.
// Persistence is best effort: failures are logged and swallowed, and never
// block or fail the session.
func (c *Controller) persist(ctx context.Context) {
	turns := c.store.Snapshot()
	if len(turns) > c.limit {
		turns = turns[len(turns)-c.limit:]
	}
	if err := c.repo.PutSnapshot(ctx, c.key, turns); err != nil {
		c.logger.Warn("snapshot write failed", "session_key", c.key, "error", err)
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(c.State())
	}
}

// failureMessage derives the user-visible message from a gateway failure.
func failureMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return fallbackFailureMessage
	}
	return msg
}
