package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"roulette/internal/domain"
	"roulette/internal/store"
)

// fakeStore is an in-memory RecordStore that pushes a snapshot to every
// subscriber after each change.
type fakeStore struct {
	mu        sync.Mutex
	records   domain.Snapshot
	seq       int64
	inserts   []domain.Draft
	deletes   []string
	insertErr error
	deleteErr map[string]error
	subs      map[chan domain.Snapshot]struct{}
}

func newFakeStore(names ...string) *fakeStore {
	s := &fakeStore{
		deleteErr: make(map[string]error),
		subs:      make(map[chan domain.Snapshot]struct{}),
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, n := range names {
		s.seq++
		s.records = append(domain.Snapshot{{
			ID:        fmt.Sprintf("rec-%d", s.seq),
			Name:      n,
			A:         "A",
			B:         "B",
			C:         "C",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Seq:       s.seq,
		}}, s.records...)
	}
	return s
}

func (s *fakeStore) Subscribe(ctx context.Context) (*store.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan domain.Snapshot, 1)
	s.subs[ch] = struct{}{}
	ch <- s.records.Clone()

	return store.NewSubscription(ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}), nil
}

func (s *fakeStore) Insert(ctx context.Context, draft domain.Draft) (domain.RecordEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return domain.RecordEntry{}, s.insertErr
	}

	s.seq++
	rec := domain.RecordEntry{
		ID:        fmt.Sprintf("rec-%d", s.seq),
		Name:      draft.Name,
		A:         draft.A,
		B:         draft.B,
		C:         draft.C,
		Timestamp: time.Now(),
		Seq:       s.seq,
	}
	s.inserts = append(s.inserts, draft)
	s.records = append(domain.Snapshot{rec}, s.records...)
	s.publish()
	return rec, nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteErr[id]; err != nil {
		return err
	}

	s.deletes = append(s.deletes, id)
	kept := domain.Snapshot{}
	for _, r := range s.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.records = kept
	s.publish()
	return nil
}

// publish replaces any pending snapshot (caller must hold lock)
func (s *fakeStore) publish() {
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.records.Clone()
	}
}

func (s *fakeStore) insertedDrafts() []domain.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Draft(nil), s.inserts...)
}

func (s *fakeStore) deletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

// recordingClient is a ClientConnection that keeps every view event it is sent
type recordingClient struct {
	id     string
	events chan *domain.ViewEvent
	mu     sync.Mutex
	closed bool
}

func newRecordingClient(id string) *recordingClient {
	return &recordingClient{id: id, events: make(chan *domain.ViewEvent, 512)}
}

func (c *recordingClient) Send(message interface{}) error {
	if ev, ok := message.(*domain.ViewEvent); ok {
		c.events <- ev
	}
	return nil
}

func (c *recordingClient) GetClientID() string { return c.id }

func (c *recordingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// waitEvent returns the next event of the given type, skipping others
func waitEvent(t *testing.T, c *recordingClient, typ domain.EventType) *domain.ViewEvent {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.events:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
			return nil
		}
	}
}
