package domain

// ReelState is the visible state of one reel
type ReelState struct {
	Category      Category `json:"category"`
	DisplayedWord string   `json:"displayedWord"`
	IsSpinning    bool     `json:"isSpinning"`
}

// NewReelState creates an idle reel showing its placeholder
func NewReelState(c Category) *ReelState {
	return &ReelState{
		Category:      c,
		DisplayedWord: c.Placeholder(),
	}
}

// Begin marks the reel as spinning. It returns false if a spin is already running.
func (r *ReelState) Begin() bool {
	if r.IsSpinning {
		return false
	}
	r.IsSpinning = true
	return true
}

// Show replaces the displayed word
func (r *ReelState) Show(word string) {
	r.DisplayedWord = word
}

// End marks the reel as idle, keeping the last displayed word
func (r *ReelState) End() {
	r.IsSpinning = false
}

// ResetDisplay puts the placeholder back without touching the spinning flag
func (r *ReelState) ResetDisplay() {
	r.DisplayedWord = r.Category.Placeholder()
}
