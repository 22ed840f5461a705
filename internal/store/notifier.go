package store

import (
	"context"
	"sync"
)

// Notifier carries "the record collection changed" signals between writers
// and the snapshot fan-out. Signals carry no data; receivers re-read the
// collection.
type Notifier interface {
	// Publish announces a change made by this process
	Publish(ctx context.Context) error
	// Changes yields a value whenever the collection may have changed
	Changes() <-chan struct{}
	Close() error
}

// LocalNotifier signals changes inside a single process
type LocalNotifier struct {
	changes chan struct{}
	once    sync.Once
}

// NewLocalNotifier creates an in-process notifier
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{changes: make(chan struct{}, 1)}
}

// Publish implements Notifier
func (n *LocalNotifier) Publish(ctx context.Context) error {
	signal(n.changes)
	return nil
}

// Changes implements Notifier
func (n *LocalNotifier) Changes() <-chan struct{} {
	return n.changes
}

// Close implements Notifier
func (n *LocalNotifier) Close() error {
	return nil
}

// signal does a non-blocking send; pending signals coalesce
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
