package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewBoard_ShowsPlaceholders(t *testing.T) {
	b := NewBoard("view-1")

	for _, c := range Categories {
		if got := b.DisplayedWord(c); got != c.Placeholder() {
			t.Errorf("reel %s shows %q, want %q", c, got, c.Placeholder())
		}
		if b.IsSpinning(c) {
			t.Errorf("reel %s should be idle", c)
		}
	}
	if len(b.Records) != 0 {
		t.Errorf("expected empty record cache, got %d", len(b.Records))
	}
}

func TestBoard_BeginSpinGuardsReentry(t *testing.T) {
	b := NewBoard("view-1")

	if !b.BeginSpin(CategoryA) {
		t.Fatal("first spin of A should start")
	}
	before := *b.Reels[CategoryA]

	if b.BeginSpin(CategoryA) {
		t.Fatal("second spin of A while spinning should be ignored")
	}
	if *b.Reels[CategoryA] != before {
		t.Errorf("state changed on ignored spin: %+v -> %+v", before, *b.Reels[CategoryA])
	}

	// Other reels are independent
	if !b.BeginSpin(CategoryB) {
		t.Error("B should start while A spins")
	}

	b.EndSpin(CategoryA)
	if !b.BeginSpin(CategoryA) {
		t.Error("A should start again after it stopped")
	}
}

func TestBoard_BeginSpinUnknownCategory(t *testing.T) {
	b := NewBoard("view-1")
	if b.BeginSpin(Category("D")) {
		t.Error("unknown category should not spin")
	}
}

func TestBoard_Draft(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrEmptyName},
		{name: "blank", input: "   \t", wantErr: ErrEmptyName},
		{name: "named", input: "Alice"},
		{name: "padded keeps spaces", input: " Bob "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBoard("view-1")
			b.SetName(tt.input)
			b.ShowWord(CategoryA, "돌")
			b.ShowWord(CategoryB, "과일")
			b.ShowWord(CategoryC, "태양")

			d, err := b.Draft()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Draft() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			want := Draft{Name: tt.input, A: "돌", B: "과일", C: "태양"}
			if d != want {
				t.Errorf("Draft() = %+v, want %+v", d, want)
			}
		})
	}
}

func TestBoard_ClearAfterSubmitKeepsSpinningFlag(t *testing.T) {
	b := NewBoard("view-1")
	b.SetName("Alice")
	b.BeginSpin(CategoryC)
	b.ShowWord(CategoryA, "돌")
	b.ShowWord(CategoryC, "물")

	b.ClearAfterSubmit()

	if b.Name != "" {
		t.Errorf("name = %q, want empty", b.Name)
	}
	for _, c := range Categories {
		if got := b.DisplayedWord(c); got != c.Placeholder() {
			t.Errorf("reel %s shows %q after submit", c, got)
		}
	}
	if !b.IsSpinning(CategoryC) {
		t.Error("spinning flag must not be force-reset")
	}
}

func TestBoard_ReplaceRecordsCopies(t *testing.T) {
	b := NewBoard("view-1")
	snap := Snapshot{{ID: "1", Name: "Alice", Timestamp: time.Now()}}

	b.ReplaceRecords(snap)
	snap[0].Name = "mutated"

	if b.Records[0].Name != "Alice" {
		t.Error("board must hold its own copy of the snapshot")
	}

	b.ClearRecords()
	if len(b.Records) != 0 {
		t.Errorf("records not cleared: %d", len(b.Records))
	}
}

func TestBoard_ReplaceRecordsSortsNewestFirst(t *testing.T) {
	b := NewBoard("view-1")
	now := time.Now()

	b.ReplaceRecords(Snapshot{
		{ID: "old", Timestamp: now.Add(-time.Minute), Seq: 1},
		{ID: "new", Timestamp: now, Seq: 2},
	})

	if b.Records[0].ID != "new" {
		t.Errorf("order = %v, want newest first", b.Records.IDs())
	}
}

func TestBoard_StateOrder(t *testing.T) {
	b := NewBoard("view-1")
	state := b.State()

	if len(state.Reels) != 3 {
		t.Fatalf("expected 3 reels, got %d", len(state.Reels))
	}
	for i, c := range Categories {
		if state.Reels[i].Category != c {
			t.Errorf("reel %d = %s, want %s", i, state.Reels[i].Category, c)
		}
	}
}
