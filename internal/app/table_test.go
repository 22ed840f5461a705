package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"roulette/internal/domain"
)

func newTestTable(t *testing.T, rs RecordStore) (*Table, *clockwork.FakeClock, *recordingClient) {
	t.Helper()
	return newTestTableWith(t, rs, nil)
}

// newTestTableWith lets a test adjust the options before the view is created
func newTestTableWith(t *testing.T, rs RecordStore, adjust func(*TableOptions)) (*Table, *clockwork.FakeClock, *recordingClient) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	opts := DefaultTableOptions()
	opts.Clock = clock
	opts.Spin = SpinSettings{Interval: 50 * time.Millisecond, MinTicks: 3, TickSpread: 1}
	opts.Rand = rand.New(rand.NewPCG(1, 2))
	if adjust != nil {
		adjust(&opts)
	}

	tbl := NewTable("view-1", rs, opts, zerolog.Nop())
	client := newRecordingClient("client-1")
	tbl.RegisterClient(client.GetClientID(), client)
	t.Cleanup(tbl.Close)

	return tbl, clock, client
}

func reelOf(t *testing.T, ev *domain.ViewEvent) domain.ReelState {
	t.Helper()
	payload, ok := ev.Payload.(*domain.ReelUpdatePayload)
	if !ok {
		t.Fatalf("payload is %T", ev.Payload)
	}
	return payload.Reel
}

func TestTable_SpinRunsToCompletion(t *testing.T) {
	tbl, clock, client := newTestTable(t, newFakeStore())

	if !tbl.Spin(domain.CategoryA) {
		t.Fatal("first spin should start")
	}
	started := reelOf(t, waitEvent(t, client, domain.EventReelUpdated))
	if !started.IsSpinning || started.DisplayedWord != "A" {
		t.Errorf("reel at start = %+v", started)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("ticker never started: %v", err)
	}

	var reel domain.ReelState
	for i := 0; i < 3; i++ {
		clock.Advance(50 * time.Millisecond)
		reel = reelOf(t, waitEvent(t, client, domain.EventReelUpdated))
		if !DefaultWordBank.Contains(domain.CategoryA, reel.DisplayedWord) {
			t.Errorf("tick %d showed %q, not an A word", i, reel.DisplayedWord)
		}
	}

	if reel.IsSpinning {
		t.Error("reel should stop after its last tick")
	}
	state := tbl.State()
	if state.Reels[0].IsSpinning || state.Reels[0].DisplayedWord != reel.DisplayedWord {
		t.Errorf("board reel = %+v, want stopped on %q", state.Reels[0], reel.DisplayedWord)
	}
}

func TestTable_SpinWhileSpinningIsNoop(t *testing.T) {
	tbl, _, _ := newTestTable(t, newFakeStore())

	if !tbl.Spin(domain.CategoryB) {
		t.Fatal("first spin should start")
	}
	if tbl.Spin(domain.CategoryB) {
		t.Error("second spin on a spinning reel should be ignored")
	}
	if !tbl.Spin(domain.CategoryC) {
		t.Error("other reels spin independently")
	}
	if tbl.Spin(domain.Category("D")) {
		t.Error("unknown category should not spin")
	}
}

func TestTable_SubmitEmptyNameWritesNothing(t *testing.T) {
	rs := newFakeStore()
	tbl, _, _ := newTestTable(t, rs)

	for _, name := range []string{"", "   "} {
		tbl.SetName(name)
		if _, err := tbl.Submit(context.Background()); !errors.Is(err, domain.ErrEmptyName) {
			t.Errorf("Submit with name %q: err = %v, want ErrEmptyName", name, err)
		}
	}

	if drafts := rs.insertedDrafts(); len(drafts) != 0 {
		t.Errorf("inserted %v, want nothing", drafts)
	}
}

func TestTable_SubmitWritesDraftAndClears(t *testing.T) {
	rs := newFakeStore()
	tbl, clock, client := newTestTable(t, rs)

	tbl.SetName("Alice")
	tbl.mu.Lock()
	tbl.board.ShowWord(domain.CategoryA, "돌")
	tbl.board.ShowWord(domain.CategoryB, "과일")
	tbl.board.ShowWord(domain.CategoryC, "태양")
	tbl.mu.Unlock()

	rec, err := tbl.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := []domain.Draft{{Name: "Alice", A: "돌", B: "과일", C: "태양"}}
	if got := rs.insertedDrafts(); !reflect.DeepEqual(got, want) {
		t.Errorf("inserted %+v, want %+v", got, want)
	}
	if rec.ID == "" {
		t.Error("expected the store-assigned id")
	}

	state := tbl.State()
	if state.Name != "" {
		t.Errorf("name = %q, want cleared", state.Name)
	}
	for _, reel := range state.Reels {
		if reel.DisplayedWord != reel.Category.Placeholder() {
			t.Errorf("reel %s shows %q, want placeholder", reel.Category, reel.DisplayedWord)
		}
	}

	waitEvent(t, client, domain.EventSubmitted)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("scroll timer never armed: %v", err)
	}
	clock.Advance(100 * time.Millisecond)
	waitEvent(t, client, domain.EventScrollToRecords)
}

func TestTable_SubmitStoreFailureKeepsDraft(t *testing.T) {
	rs := newFakeStore()
	rs.insertErr = errors.New("write refused")
	tbl, _, _ := newTestTable(t, rs)

	tbl.SetName("Bob")
	if _, err := tbl.Submit(context.Background()); !errors.Is(err, rs.insertErr) {
		t.Fatalf("err = %v, want the store error", err)
	}
	if state := tbl.State(); state.Name != "Bob" {
		t.Errorf("name = %q, want it kept after a failed write", state.Name)
	}
}

func openSynced(t *testing.T, tbl *Table, client *recordingClient, want int) {
	t.Helper()

	if err := tbl.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	for {
		ev := waitEvent(t, client, domain.EventRecordsSynced)
		if len(ev.Payload.(*domain.RecordsPayload).Records) == want {
			return
		}
	}
}

func TestTable_ResetWrongPassword(t *testing.T) {
	rs := newFakeStore("x", "y")
	tbl, _, client := newTestTable(t, rs)
	openSynced(t, tbl, client, 2)

	n, err := tbl.Reset(context.Background(), "0000")
	if !errors.Is(err, domain.ErrWrongPassword) || n != 0 {
		t.Fatalf("Reset = %d, %v; want 0, ErrWrongPassword", n, err)
	}
	if ids := rs.deletedIDs(); len(ids) != 0 {
		t.Errorf("deleted %v with a wrong password", ids)
	}
	waitEvent(t, client, domain.EventResetRejected)

	if got := len(tbl.State().Records); got != 2 {
		t.Errorf("cached records = %d, want 2", got)
	}
}

func TestTable_ResetDeletesEveryCachedRecord(t *testing.T) {
	rs := newFakeStore("x", "y", "z")
	tbl, _, client := newTestTable(t, rs)
	openSynced(t, tbl, client, 3)

	n, err := tbl.Reset(context.Background(), "1515")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}

	want := []string{"rec-3", "rec-2", "rec-1"}
	if got := rs.deletedIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("delete order = %v, want %v", got, want)
	}
	if got := len(tbl.State().Records); got != 0 {
		t.Errorf("cached records = %d after reset", got)
	}

	ev := waitEvent(t, client, domain.EventResetCompleted)
	if ev.Payload.(*domain.ResetPayload).Deleted != 3 {
		t.Errorf("payload = %+v", ev.Payload)
	}
}

func TestTable_ResetStopsOnFirstFailure(t *testing.T) {
	rs := newFakeStore("x", "y", "z")
	boom := errors.New("boom")
	rs.deleteErr["rec-2"] = boom
	tbl, _, client := newTestTable(t, rs)
	openSynced(t, tbl, client, 3)

	n, err := tbl.Reset(context.Background(), "1515")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if got := rs.deletedIDs(); !reflect.DeepEqual(got, []string{"rec-3"}) {
		t.Errorf("deleted %v, want only the record before the failure", got)
	}
}

func TestTable_ResetEmptyCache(t *testing.T) {
	tbl, _, _ := newTestTable(t, newFakeStore())

	n, err := tbl.Reset(context.Background(), "1515")
	if err != nil || n != 0 {
		t.Errorf("Reset = %d, %v; want 0, nil", n, err)
	}
}

func TestTable_CloseStopsEverything(t *testing.T) {
	rs := newFakeStore("x")
	tbl, _, client := newTestTable(t, rs)
	openSynced(t, tbl, client, 1)

	if !tbl.Spin(domain.CategoryA) {
		t.Fatal("spin should start")
	}

	tbl.Close()
	tbl.Close()

	if !client.isClosed() {
		t.Error("client should be closed with the view")
	}
	if tbl.GetClientCount() != 0 {
		t.Error("clients should be dropped")
	}
	if tbl.Spin(domain.CategoryB) {
		t.Error("closed view should not spin")
	}
	if tbl.spinner.Active(domain.CategoryA) {
		t.Error("spinner should be stopped")
	}
}

func TestTable_DetachedSince(t *testing.T) {
	tbl, clock, client := newTestTable(t, newFakeStore())

	if _, detached := tbl.DetachedSince(); detached {
		t.Error("view with a client should not be detached")
	}

	clock.Advance(time.Minute)
	tbl.UnregisterClient(client.GetClientID())

	since, detached := tbl.DetachedSince()
	if !detached || !since.Equal(clock.Now()) {
		t.Errorf("DetachedSince = %v, %v", since, detached)
	}
}

// slowDeleteStore takes a fixed real-time delay on every delete
type slowDeleteStore struct {
	*fakeStore
	delay time.Duration
}

func (s *slowDeleteStore) Delete(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.delay):
	}
	return s.fakeStore.Delete(ctx, id)
}

func TestTable_ResetTimesOutPerDelete(t *testing.T) {
	rs := &slowDeleteStore{fakeStore: newFakeStore("a", "b", "c", "d", "e", "f"), delay: 40 * time.Millisecond}
	tbl, _, client := newTestTableWith(t, rs, func(o *TableOptions) {
		o.StoreTimeout = 150 * time.Millisecond
	})
	openSynced(t, tbl, client, 6)

	// Six deletes take longer than one StoreTimeout in total
	n, err := tbl.Reset(context.Background(), "1515")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 6 {
		t.Errorf("deleted = %d, want 6", n)
	}
}

func TestTable_ZeroOptionsUseDefaults(t *testing.T) {
	tbl := NewTable("view-0", newFakeStore(), TableOptions{}, zerolog.Nop())
	defer tbl.Close()

	def := DefaultTableOptions()
	if tbl.opts.ResetPassword != def.ResetPassword {
		t.Errorf("password = %q, want %q", tbl.opts.ResetPassword, def.ResetPassword)
	}
	if tbl.opts.Spin != def.Spin {
		t.Errorf("spin = %+v, want %+v", tbl.opts.Spin, def.Spin)
	}
	if tbl.opts.StoreTimeout != def.StoreTimeout || tbl.opts.ScrollDelay != def.ScrollDelay {
		t.Errorf("timeouts = %v, %v", tbl.opts.StoreTimeout, tbl.opts.ScrollDelay)
	}

	if _, err := tbl.Reset(context.Background(), ""); !errors.Is(err, domain.ErrWrongPassword) {
		t.Errorf("empty password: err = %v, want ErrWrongPassword", err)
	}
	if !tbl.Spin(domain.CategoryA) {
		t.Error("spin should start with default settings")
	}
}

func TestTable_RegisterOnClosedView(t *testing.T) {
	tbl, _, _ := newTestTable(t, newFakeStore())
	tbl.Close()

	late := newRecordingClient("late")
	if err := tbl.RegisterClient(late.GetClientID(), late); !errors.Is(err, domain.ErrViewClosed) {
		t.Errorf("err = %v, want ErrViewClosed", err)
	}
	if tbl.GetClientCount() != 0 {
		t.Error("closed view should not keep the client")
	}
}
