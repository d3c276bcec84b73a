// Package queue owns the in-memory pending message list and its
// synchronization with the remote store: the periodic refresh loop, manual
// refreshes, and the optimistic cancel/undo protocol. All list mutations go
// through the Synchronizer; consumers only ever see copies via Snapshot.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/ptelles/sendq/internal/backend"
	"github.com/ptelles/sendq/internal/bus"
	"github.com/ptelles/sendq/internal/settings"
	"go.uber.org/zap"
)

// ClientFactory builds a remote store client for a base address. Swapped out
// in tests.
type ClientFactory func(baseAddr string) (backend.Store, error)

// Snapshot is the read-only view handed to the UI.
type Snapshot struct {
	Messages   []backend.PendingMessage
	Refreshing bool
	BackendURL string
	Interval   time.Duration
}

// Synchronizer mediates between the remote message store and local actions.
type Synchronizer struct {
	mu           sync.Mutex
	messages     []backend.PendingMessage
	refreshing   bool
	client       backend.Store
	backendURL   string
	interval     time.Duration
	generation   uint64
	cancelLoop   context.CancelFunc
	settingsPath string
	factory      ClientFactory
	bus          *bus.Bus
	logger       *zap.Logger
}

// New creates a Synchronizer from loaded settings. A malformed backend
// address is logged and leaves the client unset; every remote call is then a
// no-op until the settings are fixed.
func New(cfg settings.Settings, settingsPath string, b *bus.Bus, logger *zap.Logger) *Synchronizer {
	return NewWithFactory(cfg, settingsPath, func(addr string) (backend.Store, error) {
		return backend.NewClient(addr)
	}, b, logger)
}

// NewWithFactory is New with an injected client factory, for tests.
func NewWithFactory(cfg settings.Settings, settingsPath string, factory ClientFactory, b *bus.Bus, logger *zap.Logger) *Synchronizer {
	s := &Synchronizer{
		interval:     time.Duration(cfg.RefreshIntervalSeconds) * time.Second,
		settingsPath: settingsPath,
		factory:      factory,
		bus:          b,
		logger:       logger,
	}
	s.configureClient(cfg.BackendURL)
	return s
}

func (s *Synchronizer) configureClient(baseAddr string) {
	client, err := s.factory(baseAddr)
	if err != nil {
		s.logger.Error("backend client unusable, remote calls disabled",
			zap.String("backend_url", baseAddr), zap.Error(err))
		s.mu.Lock()
		s.client = nil
		s.backendURL = baseAddr
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.client = client
	s.backendURL = baseAddr
	s.mu.Unlock()
}

// Client returns the current remote store client, or nil when the configured
// address was unusable.
func (s *Synchronizer) Client() backend.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// Snapshot returns a copy of the observable state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]backend.PendingMessage, len(s.messages))
	copy(msgs, s.messages)
	return Snapshot{
		Messages:   msgs,
		Refreshing: s.refreshing,
		BackendURL: s.backendURL,
		Interval:   s.interval,
	}
}

// StartRefreshLoop starts the periodic fetch loop, superseding any previous
// one. The generation counter fences stale loops: a fetch started under an
// old generation is discarded when it lands.
func (s *Synchronizer) StartRefreshLoop(ctx context.Context) {
	s.mu.Lock()
	if s.cancelLoop != nil {
		s.cancelLoop()
	}
	s.generation++
	gen := s.generation
	interval := s.interval
	if interval <= 0 {
		interval = settings.DefaultRefreshIntervalSeconds * time.Second
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancelLoop = cancel
	s.mu.Unlock()

	go s.loop(loopCtx, gen, interval)
}

// StopRefreshLoop cancels the running loop, if any.
func (s *Synchronizer) StopRefreshLoop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelLoop != nil {
		s.cancelLoop()
		s.cancelLoop = nil
	}
}

func (s *Synchronizer) loop(ctx context.Context, gen uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.fetch(ctx, gen)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Fetch performs a user-triggered refresh under the current generation.
func (s *Synchronizer) Fetch(ctx context.Context) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	s.fetch(ctx, gen)
}

func (s *Synchronizer) fetch(ctx context.Context, gen uint64) {
	s.mu.Lock()
	client := s.client
	s.refreshing = true
	s.mu.Unlock()
	s.publish(bus.KindQueueRefreshing, true)

	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
		s.publish(bus.KindQueueRefreshing, false)
	}()

	if client == nil {
		return
	}

	msgs, err := client.ListPending(ctx)
	if err != nil {
		// Stale data is better than a flapping list; keep what we have.
		s.logger.Warn("pending fetch failed, keeping prior list", zap.Error(err))
		return
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding fetch from superseded refresh loop",
			zap.Uint64("fetch_gen", gen), zap.Uint64("current_gen", s.generation))
		return
	}
	// Server truth replaces the list wholesale, including any optimistic
	// removals that were never confirmed.
	s.messages = msgs
	s.mu.Unlock()
	s.publish(bus.KindQueueReplaced, len(msgs))
}

// Remove filters a message out of the list by id. Used both for the
// optimistic cancel path and for dropping a message after a successful send.
func (s *Synchronizer) Remove(id int64) {
	s.mu.Lock()
	filtered := s.messages[:0:0]
	for _, m := range s.messages {
		if m.ID != id {
			filtered = append(filtered, m)
		}
	}
	s.messages = filtered
	s.mu.Unlock()
	s.publish(bus.KindQueueRemoved, id)
}

// UndoRemove reinserts a previously removed message at the head of the list.
// Purely local; the server was never told about the removal.
func (s *Synchronizer) UndoRemove(msg backend.PendingMessage) {
	s.mu.Lock()
	restored := make([]backend.PendingMessage, 0, len(s.messages)+1)
	restored = append(restored, msg)
	restored = append(restored, s.messages...)
	s.messages = restored
	s.mu.Unlock()
	s.publish(bus.KindQueueRestored, msg.ID)
}

// ConfirmCancel tells the remote store a canceled message is done with,
// via exactly one mark-sent call. The message stays out of the local list
// whatever happens; on failure local and remote now disagree until the next
// fetch re-reveals the item.
func (s *Synchronizer) ConfirmCancel(ctx context.Context, msg backend.PendingMessage) error {
	client := s.Client()
	if client == nil {
		s.logger.Warn("cancel not confirmed, no backend client", zap.Int64("id", msg.ID))
		return nil
	}
	if err := client.MarkSent(ctx, msg.ID); err != nil {
		s.logger.Warn("mark-sent for canceled message failed", zap.Int64("id", msg.ID), zap.Error(err))
		return err
	}
	return nil
}

// SetRefreshing flips the busy flag around bulk operations so the UI can
// show progress for work that is not a plain fetch.
func (s *Synchronizer) SetRefreshing(v bool) {
	s.mu.Lock()
	s.refreshing = v
	s.mu.Unlock()
	s.publish(bus.KindQueueRefreshing, v)
}

// ApplySettings persists the URL/interval pair, reconfigures the backend
// client, and restarts the refresh loop under a fresh generation. The
// interval string goes through settings.ParseInterval, so garbage input
// falls back to the default.
func (s *Synchronizer) ApplySettings(ctx context.Context, backendURL, intervalInput, gatewayURL string) error {
	interval := settings.ParseInterval(intervalInput)

	cfg := settings.Settings{
		BackendURL:             backendURL,
		RefreshIntervalSeconds: interval,
		SMSGatewayURL:          gatewayURL,
	}
	if err := settings.Save(s.settingsPath, cfg); err != nil {
		return err
	}

	s.mu.Lock()
	s.interval = time.Duration(interval) * time.Second
	s.mu.Unlock()

	s.configureClient(backendURL)
	s.StartRefreshLoop(ctx)
	return nil
}

func (s *Synchronizer) publish(kind string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
