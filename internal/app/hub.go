package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"roulette/internal/domain"
)

const (
	// DefaultReconnectGrace is how long a view with no clients stays open
	DefaultReconnectGrace = 2 * time.Minute

	// DefaultCleanupInterval is how often detached views are checked
	DefaultCleanupInterval = 30 * time.Second
)

// HubOptions configures a Hub and the tables it opens
type HubOptions struct {
	Table           TableOptions
	ReconnectGrace  time.Duration
	CleanupInterval time.Duration
}

// Hub manages all open views
type Hub struct {
	tables map[string]*Table
	mu     sync.RWMutex
	store  RecordStore
	opts   HubOptions
	clock  clockwork.Clock
	logger zerolog.Logger
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewHub creates a new hub
func NewHub(rs RecordStore, opts HubOptions, logger zerolog.Logger) *Hub {
	if opts.Table.Clock == nil {
		opts.Table.Clock = clockwork.NewRealClock()
	}
	if opts.ReconnectGrace <= 0 {
		opts.ReconnectGrace = DefaultReconnectGrace
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}

	hub := &Hub{
		tables: make(map[string]*Table),
		store:  rs,
		opts:   opts,
		clock:  opts.Table.Clock,
		logger: logger.With().Str("component", "hub").Logger(),
		done:   make(chan struct{}),
	}

	// Start cleanup goroutine
	hub.wg.Add(1)
	go hub.cleanupLoop()

	return hub
}

// OpenTable creates a view and starts its record feed
func (h *Hub) OpenTable(ctx context.Context) (*Table, error) {
	select {
	case <-h.done:
		return nil, domain.ErrViewClosed
	default:
	}

	id := uuid.NewString()
	table := NewTable(id, h.store, h.opts.Table, h.logger)
	if err := table.Open(ctx); err != nil {
		table.Close()
		return nil, fmt.Errorf("failed to open view: %w", err)
	}

	// Close may have run while the feed was opening; it swaps the map
	// only after done is closed, so checking done under the lock is enough.
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		table.Close()
		return nil, domain.ErrViewClosed
	default:
	}
	h.tables[id] = table
	h.mu.Unlock()

	h.logger.Info().Str("view_id", id).Msg("view opened")
	return table, nil
}

// GetTable returns an open view by id
func (h *Hub) GetTable(id string) (*Table, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	table, ok := h.tables[id]
	if !ok {
		return nil, domain.ErrViewNotFound
	}

	return table, nil
}

// CloseTable closes and forgets a view
func (h *Hub) CloseTable(id string) {
	h.mu.Lock()
	table, ok := h.tables[id]
	delete(h.tables, id)
	h.mu.Unlock()

	if ok {
		table.Close()
		h.logger.Info().Str("view_id", id).Msg("view closed")
	}
}

// TableCount returns the number of open views
func (h *Hub) TableCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tables)
}

// ClientCount returns the number of clients across all views
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, table := range h.tables {
		total += table.GetClientCount()
	}
	return total
}

// Close shuts down the hub and all views
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		tables := h.tables
		h.tables = make(map[string]*Table)
		h.mu.Unlock()

		for _, table := range tables {
			table.Close()
		}
	})
}

// cleanupLoop periodically closes views nobody came back to
func (h *Hub) cleanupLoop() {
	defer h.wg.Done()

	ticker := h.clock.NewTicker(h.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.Chan():
			h.cleanupDetached()
		}
	}
}

// cleanupDetached closes views that have had no clients for longer than the grace period
func (h *Hub) cleanupDetached() {
	now := h.clock.Now()

	h.mu.Lock()
	stale := make([]*Table, 0)
	for id, table := range h.tables {
		since, detached := table.DetachedSince()
		if detached && now.Sub(since) > h.opts.ReconnectGrace {
			stale = append(stale, table)
			delete(h.tables, id)
		}
	}
	h.mu.Unlock()

	for _, table := range stale {
		table.Close()
		h.logger.Info().Str("view_id", table.ID()).Msg("detached view cleaned up")
	}
}
