package app

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"roulette/internal/domain"
)

// SpinSettings controls reel animation timing
type SpinSettings struct {
	Interval   time.Duration
	MinTicks   int
	TickSpread int
}

// DefaultSpinSettings returns 50ms ticks and a tick count in [30, 49]
func DefaultSpinSettings() SpinSettings {
	return SpinSettings{
		Interval:   50 * time.Millisecond,
		MinTicks:   30,
		TickSpread: 20,
	}
}

// TickFunc receives the word picked on a tick. last is true on the final tick of a spin.
type TickFunc func(word string, last bool)

// Spinner owns the tick sources of one view's reels. Each reel has at most
// one running tick source; Stop tears all of them down.
type Spinner struct {
	clock    clockwork.Clock
	bank     WordBank
	settings SpinSettings

	rng   *rand.Rand
	rngMu sync.Mutex

	active map[domain.Category]chan struct{}
	mu     sync.Mutex
	wg     sync.WaitGroup
}

// NewSpinner creates a spinner. A nil rng gets a randomly seeded source.
func NewSpinner(clock clockwork.Clock, bank WordBank, settings SpinSettings, rng *rand.Rand) *Spinner {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Spinner{
		clock:    clock,
		bank:     bank,
		settings: settings,
		rng:      rng,
		active:   make(map[domain.Category]chan struct{}),
	}
}

// DrawTicks draws the length of a spin: MinTicks + uniform[0, TickSpread)
func (s *Spinner) DrawTicks() int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.settings.MinTicks + s.rng.IntN(s.settings.TickSpread)
}

// Pick returns a uniformly random word for c
func (s *Spinner) Pick(c domain.Category) string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.bank.Pick(c, s.rng)
}

// Active reports whether c has a running tick source
func (s *Spinner) Active(c domain.Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[c]
	return ok
}

// Run starts a tick source for c that fires `ticks` times, one Interval
// apart, calling tick with a fresh random word each time. It returns false
// if c already has a running tick source.
func (s *Spinner) Run(c domain.Category, ticks int, tick TickFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.active[c]; running {
		return false
	}
	if ticks < 1 {
		ticks = 1
	}

	stop := make(chan struct{})
	s.active[c] = stop
	s.wg.Add(1)

	go s.loop(c, ticks, stop, tick)
	return true
}

// loop runs one spin until its tick budget is spent or it is stopped
func (s *Spinner) loop(c domain.Category, ticks int, stop chan struct{}, tick TickFunc) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.settings.Interval)
	defer ticker.Stop()

	for n := 1; n <= ticks; n++ {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
		}

		word := s.Pick(c)
		if n < ticks {
			tick(word, false)
			continue
		}

		// Free the slot before reporting the final tick so a spin requested
		// right after it can start.
		ticker.Stop()
		s.release(c, stop)
		tick(word, true)
	}
}

// release drops c's tick source if it is still the given one
func (s *Spinner) release(c domain.Category, stop chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[c] == stop {
		delete(s.active, c)
	}
}

// Stop cancels every running tick source and waits for them to exit
func (s *Spinner) Stop() {
	s.mu.Lock()
	for c, stop := range s.active {
		close(stop)
		delete(s.active, c)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
