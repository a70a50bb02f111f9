package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/progress"
)

// ErrRunNotFound is returned for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// ErrRunNotRunning is returned when cancel is requested for a run that
// already reached a terminal state.
var ErrRunNotRunning = errors.New("run is not running")

// ErrRunExists is returned when registering a duplicate run ID.
var ErrRunExists = errors.New("run already registered")

// Registry tracks all runs in this process, their state transitions,
// live progress trackers, and cancellation handles. Runs are isolated:
// no mutable state is shared between entries.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*entry
}

type entry struct {
	run     domain.Run
	tracker *progress.Tracker
	cancel  context.CancelFunc
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*entry)}
}

// Register adds a new pending run with its progress tracker and cancel
// handle.
func (r *Registry) Register(run domain.Run, tracker *progress.Tracker, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; ok {
		return ErrRunExists
	}
	r.runs[run.ID] = &entry{run: run, tracker: tracker, cancel: cancel}
	return nil
}

// Transition validates and applies a status transition for one run.
func (r *Registry) Transition(id string, status domain.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	if status == e.run.Status {
		return nil
	}
	if !isValidTransition(e.run.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", e.run.Status, status)
	}

	e.run.Status = status
	return nil
}

// Complete marks a run done with its sealed artifact path.
func (r *Registry) Complete(id, artifactPath string, at time.Time) error {
	return r.finish(id, domain.RunStatusDone, "", artifactPath, at)
}

// Fail marks a run failed with a user-visible message.
func (r *Registry) Fail(id, message string, at time.Time) error {
	return r.finish(id, domain.RunStatusFailed, message, "", at)
}

// MarkCancelled moves a run to the cancelled terminal state.
func (r *Registry) MarkCancelled(id string, at time.Time) error {
	return r.finish(id, domain.RunStatusCancelled, "", "", at)
}

// finish applies a terminal state and clears the cancel handle.
func (r *Registry) finish(id string, status domain.RunStatus, message, artifactPath string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.runs[id]
	if !ok {
		return ErrRunNotFound
	}

	e.run.Status = status
	e.run.Error = message
	e.run.ArtifactPath = artifactPath
	e.run.FinishedAt = at
	e.cancel = nil
	return nil
}

// ClaimArtifact atomically takes the run's artifact path and clears
// it, so one-shot retrieval has exactly one winner. A second claim
// returns an empty path.
func (r *Registry) ClaimArtifact(id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.runs[id]
	if !ok {
		return "", ErrRunNotFound
	}
	path := e.run.ArtifactPath
	e.run.ArtifactPath = ""
	return path, nil
}

// Get returns a snapshot of one run.
func (r *Registry) Get(id string) (domain.Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.runs[id]
	if !ok {
		return domain.Run{}, false
	}
	return e.run, true
}

// Progress returns the run's live progress snapshot.
func (r *Registry) Progress(id string) (domain.Progress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.runs[id]
	if !ok || e.tracker == nil {
		return domain.Progress{}, false
	}
	return e.tracker.Snapshot(), true
}

// Cancel invokes the run's cancel function if it is still running.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	e, ok := r.runs[id]
	if !ok {
		r.mu.Unlock()
		return ErrRunNotFound
	}
	cancel := e.cancel
	running := isRunning(e.run.Status) || e.run.Status == domain.RunStatusPending
	r.mu.Unlock()

	if !running || cancel == nil {
		return ErrRunNotRunning
	}
	cancel()
	return nil
}

// isRunning checks if a status represents active pipeline execution.
func isRunning(status domain.RunStatus) bool {
	switch status {
	case domain.RunStatusIngesting, domain.RunStatusExtracting,
		domain.RunStatusTranscribing, domain.RunStatusExporting:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed run state machine edges.
func isValidTransition(from, to domain.RunStatus) bool {
	switch from {
	case domain.RunStatusPending:
		return to == domain.RunStatusIngesting || to == domain.RunStatusFailed || to == domain.RunStatusCancelled
	case domain.RunStatusIngesting:
		return to == domain.RunStatusExtracting || to == domain.RunStatusFailed || to == domain.RunStatusCancelled
	case domain.RunStatusExtracting:
		return to == domain.RunStatusTranscribing || to == domain.RunStatusFailed || to == domain.RunStatusCancelled
	case domain.RunStatusTranscribing:
		return to == domain.RunStatusExporting || to == domain.RunStatusFailed || to == domain.RunStatusCancelled
	case domain.RunStatusExporting:
		return to == domain.RunStatusDone || to == domain.RunStatusFailed || to == domain.RunStatusCancelled
	default:
		return false
	}
}
