package domain

import (
	"strings"
	"time"
)

// Board is the state of one open view: the reels, the name field and the
// cached record list. It is not safe for concurrent use; callers serialize
// access behind their own mutex.
type Board struct {
	ID        string                  `json:"id"`
	Reels     map[Category]*ReelState `json:"reels"`
	Name      string                  `json:"name"`
	Records   Snapshot                `json:"records"`
	CreatedAt time.Time               `json:"createdAt"`
}

// NewBoard creates a board with idle reels and an empty record cache
func NewBoard(id string) *Board {
	reels := make(map[Category]*ReelState, len(Categories))
	for _, c := range Categories {
		reels[c] = NewReelState(c)
	}
	return &Board{
		ID:        id,
		Reels:     reels,
		Records:   Snapshot{},
		CreatedAt: time.Now(),
	}
}

// BeginSpin starts a spin on a reel. It returns false when the reel is
// already spinning or the category is unknown.
func (b *Board) BeginSpin(c Category) bool {
	reel, ok := b.Reels[c]
	if !ok {
		return false
	}
	return reel.Begin()
}

// ShowWord sets the displayed word of a reel
func (b *Board) ShowWord(c Category, word string) {
	if reel, ok := b.Reels[c]; ok {
		reel.Show(word)
	}
}

// EndSpin stops a reel, leaving the last displayed word
func (b *Board) EndSpin(c Category) {
	if reel, ok := b.Reels[c]; ok {
		reel.End()
	}
}

// IsSpinning reports whether the reel for c is spinning
func (b *Board) IsSpinning(c Category) bool {
	reel, ok := b.Reels[c]
	return ok && reel.IsSpinning
}

// DisplayedWord returns the word currently shown on a reel
func (b *Board) DisplayedWord(c Category) string {
	if reel, ok := b.Reels[c]; ok {
		return reel.DisplayedWord
	}
	return ""
}

// SetName replaces the name field
func (b *Board) SetName(name string) {
	b.Name = name
}

// Draft builds the pending submission from the current name and reels.
// It fails with ErrEmptyName when the name is blank.
func (b *Board) Draft() (Draft, error) {
	if strings.TrimSpace(b.Name) == "" {
		return Draft{}, ErrEmptyName
	}
	return Draft{
		Name: b.Name,
		A:    b.DisplayedWord(CategoryA),
		B:    b.DisplayedWord(CategoryB),
		C:    b.DisplayedWord(CategoryC),
	}, nil
}

// ClearAfterSubmit empties the name and puts every reel back on its placeholder.
// Spinning flags are left alone.
func (b *Board) ClearAfterSubmit() {
	b.Name = ""
	for _, reel := range b.Reels {
		reel.ResetDisplay()
	}
}

// ReplaceRecords swaps the cached list for a freshly delivered snapshot,
// newest first whatever order the store delivered it in
func (b *Board) ReplaceRecords(s Snapshot) {
	b.Records = SortSnapshot(s.Clone())
}

// ClearRecords empties the cached list
func (b *Board) ClearRecords() {
	b.Records = Snapshot{}
}

// BoardState is a copy of a board that is safe to serialize
type BoardState struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Reels   []ReelState `json:"reels"`
	Records Snapshot    `json:"records"`
}

// State copies the board for broadcasting
func (b *Board) State() BoardState {
	reels := make([]ReelState, 0, len(Categories))
	for _, c := range Categories {
		reels = append(reels, *b.Reels[c])
	}
	return BoardState{
		ID:      b.ID,
		Name:    b.Name,
		Reels:   reels,
		Records: b.Records.Clone(),
	}
}
