package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"roulette/internal/domain"
)

// ClientConnection represents a connected client
type ClientConnection interface {
	Send(message interface{}) error
	GetClientID() string
	Close() error
}

// DefaultStoreTimeout bounds a single insert or delete
const DefaultStoreTimeout = 15 * time.Second

// TableOptions configures a view. Zero fields take their value from
// DefaultTableOptions.
type TableOptions struct {
	Bank          WordBank
	Spin          SpinSettings
	ScrollDelay   time.Duration
	ResetPassword string
	StoreTimeout  time.Duration
	Clock         clockwork.Clock
	Rand          *rand.Rand
}

// DefaultTableOptions returns the stock word bank, 50ms ticks, a 100ms scroll delay and password 1515
func DefaultTableOptions() TableOptions {
	return TableOptions{
		Bank:          DefaultWordBank,
		Spin:          DefaultSpinSettings(),
		ScrollDelay:   100 * time.Millisecond,
		ResetPassword: "1515",
		StoreTimeout:  DefaultStoreTimeout,
		Clock:         clockwork.NewRealClock(),
	}
}

// withDefaults fills zero fields
func (o TableOptions) withDefaults() TableOptions {
	def := DefaultTableOptions()
	if o.Clock == nil {
		o.Clock = def.Clock
	}
	if o.Bank == nil {
		o.Bank = def.Bank
	}
	if o.Spin.Interval <= 0 {
		o.Spin.Interval = def.Spin.Interval
	}
	if o.Spin.MinTicks <= 0 {
		o.Spin.MinTicks = def.Spin.MinTicks
	}
	if o.Spin.TickSpread <= 0 {
		o.Spin.TickSpread = def.Spin.TickSpread
	}
	if o.ScrollDelay <= 0 {
		o.ScrollDelay = def.ScrollDelay
	}
	if o.ResetPassword == "" {
		o.ResetPassword = def.ResetPassword
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = def.StoreTimeout
	}
	return o
}

// Table is one open view of the game: a board with concurrency control,
// the reel spinner, the record feed and the view's client connections.
type Table struct {
	board     *domain.Board
	mu        sync.Mutex
	clients   map[string]ClientConnection // clientID -> client
	clientsMu sync.RWMutex
	logger    zerolog.Logger

	store   RecordStore
	spinner *Spinner
	feed    *Feed
	clock   clockwork.Clock
	opts    TableOptions

	scrollTimer clockwork.Timer
	detachedAt  time.Time

	// Event channel for broadcasting
	events    chan *domain.ViewEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewTable creates a view. Call Open to start its record feed.
func NewTable(id string, rs RecordStore, opts TableOptions, logger zerolog.Logger) *Table {
	opts = opts.withDefaults()

	logger = logger.With().Str("view_id", id).Logger()
	t := &Table{
		board:      domain.NewBoard(id),
		clients:    make(map[string]ClientConnection),
		logger:     logger,
		store:      rs,
		spinner:    NewSpinner(opts.Clock, opts.Bank, opts.Spin, opts.Rand),
		feed:       NewFeed(rs, logger),
		clock:      opts.Clock,
		opts:       opts,
		detachedAt: opts.Clock.Now(),
		events:     make(chan *domain.ViewEvent, 256),
		done:       make(chan struct{}),
	}

	// Start event broadcaster
	go t.eventLoop()

	return t
}

// Open activates the record feed
func (t *Table) Open(ctx context.Context) error {
	return t.feed.Open(ctx, t.applySnapshot)
}

// ID returns the view id
func (t *Table) ID() string {
	return t.board.ID
}

// RegisterClient attaches a client connection to the view. A closed view
// refuses it with domain.ErrViewClosed.
func (t *Table) RegisterClient(clientID string, client ClientConnection) error {
	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()
	if t.isClosed() {
		return domain.ErrViewClosed
	}
	t.clients[clientID] = client
	t.detachedAt = time.Time{}
	return nil
}

// UnregisterClient removes a client connection
func (t *Table) UnregisterClient(clientID string) {
	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()
	delete(t.clients, clientID)
	if len(t.clients) == 0 {
		t.detachedAt = t.clock.Now()
	}
}

// GetClientCount returns the number of attached clients
func (t *Table) GetClientCount() int {
	t.clientsMu.RLock()
	defer t.clientsMu.RUnlock()
	return len(t.clients)
}

// DetachedSince returns when the last client left, or false while clients are attached
func (t *Table) DetachedSince() (time.Time, bool) {
	t.clientsMu.RLock()
	defer t.clientsMu.RUnlock()
	if len(t.clients) > 0 || t.detachedAt.IsZero() {
		return time.Time{}, false
	}
	return t.detachedAt, true
}

// State returns a copy of the board
func (t *Table) State() domain.BoardState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.board.State()
}

// SetName replaces the name field
func (t *Table) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.board.SetName(name)
	t.queueEvent(domain.NewEvent(domain.EventStateUpdated, t.ID(), t.board.State()))
}

// Spin starts the reel for c. It returns false, changing nothing, when the
// reel is already spinning or the view is closed.
func (t *Table) Spin(c domain.Category) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isClosed() || !t.board.BeginSpin(c) {
		return false
	}

	ticks := t.spinner.DrawTicks()
	started := t.spinner.Run(c, ticks, func(word string, last bool) {
		t.onTick(c, word, last)
	})
	if !started {
		t.board.EndSpin(c)
		return false
	}

	t.logger.Debug().Str("category", c.String()).Int("ticks", ticks).Msg("spin started")
	t.queueReel(c)
	return true
}

// onTick applies one spinner tick to the board
func (t *Table) onTick(c domain.Category, word string, last bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.board.ShowWord(c, word)
	if last {
		t.board.EndSpin(c)
		t.logger.Debug().Str("category", c.String()).Str("word", word).Msg("spin stopped")
	}
	t.queueReel(c)
}

// Submit writes the current name and reel words as a new record. A blank
// name is rejected with domain.ErrEmptyName and nothing changes. On success
// the name is cleared, the reels go back to their placeholders and a scroll
// hint follows after the configured delay.
func (t *Table) Submit(ctx context.Context) (domain.RecordEntry, error) {
	t.mu.Lock()
	draft, err := t.board.Draft()
	t.mu.Unlock()
	if err != nil {
		return domain.RecordEntry{}, err
	}

	insertCtx, cancel := context.WithTimeout(ctx, t.opts.StoreTimeout)
	rec, err := t.store.Insert(insertCtx, draft)
	cancel()
	if err != nil {
		t.logger.Error().Err(err).Msg("failed to insert record")
		return domain.RecordEntry{}, fmt.Errorf("failed to insert record: %w", err)
	}

	t.mu.Lock()
	t.board.ClearAfterSubmit()
	state := t.board.State()
	t.scheduleScroll()
	t.mu.Unlock()

	t.logger.Info().Str("record_id", rec.ID).Msg("record submitted")
	t.queueEvent(domain.NewEvent(domain.EventSubmitted, t.ID(), &domain.SubmittedPayload{
		Record: rec,
		State:  state,
	}))

	return rec, nil
}

// scheduleScroll arms the scroll hint (caller must hold lock)
func (t *Table) scheduleScroll() {
	if t.scrollTimer != nil {
		t.scrollTimer.Stop()
	}
	t.scrollTimer = t.clock.AfterFunc(t.opts.ScrollDelay, func() {
		t.queueEvent(domain.NewEvent(domain.EventScrollToRecords, t.ID(), nil))
	})
}

// Reset deletes every record in the view's cache, one at a time, when
// password matches. Each delete gets its own StoreTimeout. It stops at the
// first failed delete without undoing earlier ones and reports how many
// were deleted.
func (t *Table) Reset(ctx context.Context, password string) (int, error) {
	if password != t.opts.ResetPassword {
		t.queueEvent(domain.NewEvent(domain.EventResetRejected, t.ID(), &domain.AlertPayload{
			Message: "wrong password",
		}))
		return 0, domain.ErrWrongPassword
	}

	t.mu.Lock()
	ids := t.board.Records.IDs()
	t.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return deleted, fmt.Errorf("reset interrupted after %d deletions: %w", deleted, err)
		}
		if err := t.deleteOne(ctx, id); err != nil {
			t.logger.Error().Err(err).Str("record_id", id).Int("deleted", deleted).Msg("reset stopped on failed delete")
			return deleted, fmt.Errorf("failed to delete record %s after %d deletions: %w", id, deleted, err)
		}
		deleted++
	}

	t.mu.Lock()
	t.board.ClearRecords()
	t.mu.Unlock()

	t.logger.Info().Int("deleted", deleted).Msg("records reset")
	t.queueEvent(domain.NewEvent(domain.EventResetCompleted, t.ID(), &domain.ResetPayload{
		Deleted: deleted,
	}))

	return deleted, nil
}

func (t *Table) deleteOne(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, t.opts.StoreTimeout)
	defer cancel()
	return t.store.Delete(ctx, id)
}

// applySnapshot replaces the record cache with a snapshot from the feed
func (t *Table) applySnapshot(snap domain.Snapshot) {
	t.mu.Lock()
	t.board.ReplaceRecords(snap)
	records := t.board.Records.Clone()
	t.mu.Unlock()

	t.queueEvent(domain.NewEvent(domain.EventRecordsSynced, t.ID(), &domain.RecordsPayload{
		Records: records,
	}))
}

// queueReel broadcasts one reel (caller must hold lock)
func (t *Table) queueReel(c domain.Category) {
	t.queueEvent(domain.NewEvent(domain.EventReelUpdated, t.ID(), &domain.ReelUpdatePayload{
		Reel: *t.board.Reels[c],
	}))
}

// queueEvent adds an event to the broadcast queue
func (t *Table) queueEvent(event *domain.ViewEvent) {
	select {
	case t.events <- event:
	default:
		t.logger.Warn().Str("type", string(event.Type)).Msg("event queue full, dropping event")
	}
}

// eventLoop processes events and broadcasts to clients
func (t *Table) eventLoop() {
	for {
		select {
		case <-t.done:
			return
		case event := <-t.events:
			t.broadcastEvent(event)
		}
	}
}

// broadcastEvent sends an event to every attached client
func (t *Table) broadcastEvent(event *domain.ViewEvent) {
	t.clientsMu.RLock()
	defer t.clientsMu.RUnlock()

	for clientID, client := range t.clients {
		if err := client.Send(event); err != nil {
			t.logger.Debug().Err(err).Str("client_id", clientID).Msg("failed to send to client")
		}
	}
}

func (t *Table) isClosed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Close shuts down the view: spinners stop, the feed is cancelled and
// clients are disconnected.
func (t *Table) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		close(t.done)
		if t.scrollTimer != nil {
			t.scrollTimer.Stop()
		}
		t.mu.Unlock()

		// Neither wait may happen under t.mu: ticks and snapshots take it.
		t.spinner.Stop()
		t.feed.Close()

		t.clientsMu.Lock()
		for _, client := range t.clients {
			client.Close()
		}
		t.clients = make(map[string]ClientConnection)
		t.clientsMu.Unlock()
	})
}
