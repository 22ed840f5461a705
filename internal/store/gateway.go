// Package store is the boundary to the record database: connect, subscribe
// to the ordered record collection, insert and delete.
package store

import (
	"context"
	"errors"
	"sync"

	"roulette/internal/domain"
)

// ErrClosed is returned by a gateway after Close
var ErrClosed = errors.New("store: gateway closed")

// Gateway is the record store as the rest of the server sees it.
// Records are always ordered newest first.
type Gateway interface {
	// Subscribe pushes the full ordered record list now and after every change
	Subscribe(ctx context.Context) (*Subscription, error)
	// Insert writes a record; the store assigns its id and timestamp
	Insert(ctx context.Context, draft domain.Draft) (domain.RecordEntry, error)
	// Delete removes a record. Deleting a missing id succeeds.
	Delete(ctx context.Context, id string) error
	// List returns the current ordered record list
	List(ctx context.Context) (domain.Snapshot, error)
	// Close releases the connection and ends every subscription
	Close() error
}

// Subscription is a live, cancellable stream of snapshots
type Subscription struct {
	C <-chan domain.Snapshot

	cancel func()
	once   sync.Once
}

// NewSubscription wraps a snapshot channel and its cancel function
func NewSubscription(c <-chan domain.Snapshot, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Cancel stops the stream. Calling it more than once is a no-op.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
