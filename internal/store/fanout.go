package store

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"roulette/internal/domain"
)

// Options tunes the snapshot fan-out shared by every driver
type Options struct {
	Clock          clockwork.Clock
	ResyncInterval time.Duration // full re-read even without a change signal
	Timeout        time.Duration // per re-read
}

// DefaultOptions returns a real clock, a 30s resync and a 10s timeout
func DefaultOptions() Options {
	return Options{
		Clock:          clockwork.NewRealClock(),
		ResyncInterval: 30 * time.Second,
		Timeout:        10 * time.Second,
	}
}

// listFunc reads the ordered record collection
type listFunc func(ctx context.Context) (domain.Snapshot, error)

// fanout turns change signals into full snapshots for every subscriber.
// Reads and deliveries happen under one lock so a subscriber never sees an
// older snapshot after a newer one.
type fanout struct {
	list     listFunc
	notifier Notifier
	opts     Options
	logger   zerolog.Logger

	mu     sync.Mutex
	subs   map[uint64]chan domain.Snapshot
	nextID uint64
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

func newFanout(list listFunc, notifier Notifier, opts Options, logger zerolog.Logger) *fanout {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ResyncInterval <= 0 {
		opts.ResyncInterval = DefaultOptions().ResyncInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}

	f := &fanout{
		list:     list,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		subs:     make(map[uint64]chan domain.Snapshot),
		done:     make(chan struct{}),
	}

	f.wg.Add(1)
	go f.run()
	return f
}

func (f *fanout) run() {
	defer f.wg.Done()

	ticker := f.opts.Clock.NewTicker(f.opts.ResyncInterval)
	defer ticker.Stop()

	changes := f.notifier.Changes()
	for {
		select {
		case <-f.done:
			return
		case _, ok := <-changes:
			if !ok {
				f.logger.Warn().Msg("change notifier closed, falling back to periodic resync")
				changes = nil
				continue
			}
			f.broadcast()
		case <-ticker.Chan():
			f.broadcast()
		}
	}
}

// subscribe registers a subscriber and hands it the current snapshot
func (f *fanout) subscribe(ctx context.Context) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}

	snap, err := f.list(ctx)
	if err != nil {
		return nil, err
	}

	id := f.nextID
	f.nextID++
	ch := make(chan domain.Snapshot, 1)
	f.subs[id] = ch
	offer(ch, snap.Clone())

	f.logger.Debug().Uint64("subscriber", id).Int("subscribers", len(f.subs)).Msg("subscribed")

	return NewSubscription(ch, func() { f.unsubscribe(id) }), nil
}

func (f *fanout) unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
		f.logger.Debug().Uint64("subscriber", id).Msg("unsubscribed")
	}
}

// broadcast re-reads the collection and delivers it to every subscriber
func (f *fanout) broadcast() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || len(f.subs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.opts.Timeout)
	defer cancel()

	snap, err := f.list(ctx)
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to read records for subscribers")
		return
	}

	for _, ch := range f.subs {
		offer(ch, snap.Clone())
	}
}

func (f *fanout) close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
	f.mu.Unlock()

	close(f.done)
	f.wg.Wait()
}

// offer replaces any undelivered snapshot with snap
func offer(ch chan domain.Snapshot, snap domain.Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
