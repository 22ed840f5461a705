package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"roulette/internal/domain"
	"roulette/internal/store"
)

// RecordStore is the part of the store gateway the game needs
type RecordStore interface {
	Subscribe(ctx context.Context) (*store.Subscription, error)
	Insert(ctx context.Context, draft domain.Draft) (domain.RecordEntry, error)
	Delete(ctx context.Context, id string) error
}

// Feed keeps a view's record cache in sync with the store. Every snapshot
// it receives replaces the cache as a whole.
type Feed struct {
	store  RecordStore
	logger zerolog.Logger

	mu     sync.Mutex
	sub    *store.Subscription
	stop   chan struct{}
	exited chan struct{}
	opened bool
	closed bool
}

// NewFeed creates an inactive feed
func NewFeed(rs RecordStore, logger zerolog.Logger) *Feed {
	return &Feed{
		store:  rs,
		logger: logger,
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Open subscribes to the store and calls apply for every snapshot until Close.
// A feed can be opened once.
func (f *Feed) Open(ctx context.Context, apply func(domain.Snapshot)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return domain.ErrViewClosed
	}
	if f.opened {
		return fmt.Errorf("feed already open")
	}

	sub, err := f.store.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to records: %w", err)
	}

	f.sub = sub
	f.opened = true
	go f.loop(sub, apply)
	return nil
}

func (f *Feed) loop(sub *store.Subscription, apply func(domain.Snapshot)) {
	defer close(f.exited)

	for {
		select {
		case <-f.stop:
			return
		case snap, ok := <-sub.C:
			if !ok {
				f.logger.Warn().Msg("record subscription ended, feed stopped updating")
				return
			}
			select {
			case <-f.stop:
				return
			default:
			}
			apply(snap)
		}
	}
}

// Close cancels the subscription and waits for the feed to stop. After it
// returns no snapshot is applied. Safe to call more than once.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.stop)
	sub, opened := f.sub, f.opened
	f.mu.Unlock()

	if !opened {
		return
	}
	sub.Cancel()
	<-f.exited
}
