package progress

import (
	"sync"

	"video-transcriber/internal/domain"
)

// Tracker holds the latest stage progress for one run.
// Exactly one pipeline stage writes at any given time; the HTTP layer
// reads snapshots at its own cadence.
type Tracker struct {
	mu       sync.Mutex
	stage    string
	fraction float64
	message  string
}

// NewTracker creates an empty tracker with no active stage.
func NewTracker() *Tracker {
	return &Tracker{}
}

// StartStage begins a new stage: the status message is replaced and
// the fraction resets to zero for the stage's own denominator.
func (t *Tracker) StartStage(stage, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
	t.message = message
	t.fraction = 0
}

// Report records a fraction clamped to [0, 1]. Within a stage the
// stored value never decreases; stale lower reports are dropped.
func (t *Tracker) Report(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if fraction > t.fraction {
		t.fraction = fraction
	}
}

// Snapshot returns the latest progress value.
func (t *Tracker) Snapshot() domain.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.Progress{
		Stage:    t.stage,
		Fraction: t.fraction,
		Message:  t.message,
	}
}
