package pipeline

import (
	"errors"
	"sync"
	"time"
)

// ErrConflict is returned when a run for the document is already active.
var ErrConflict = errors.New("analysis already running")

// Registry is the single piece of shared mutable run state. Runs register
// on start, are mutated only by the goroutine executing them, and are
// evicted a fixed delay after reaching a terminal state so recent status
// queries stay answerable without unbounded growth.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Registry{runs: make(map[string]*Run), ttl: ttl}
}

// Begin registers a fresh run for the document. If an active run exists the
// call fails with ErrConflict; a terminal leftover is replaced.
func (r *Registry) Begin(documentID string) (*Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.runs[documentID]; ok && !existing.terminal() {
		return nil, ErrConflict
	}
	run := newRun(documentID)
	r.runs[documentID] = run
	return run, nil
}

func (r *Registry) Get(documentID string) (*Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[documentID]
	return run, ok
}

// Cancel flags the document's run for cooperative cancellation. It reports
// whether a run existed at all.
func (r *Registry) Cancel(documentID string) bool {
	r.mu.Lock()
	run, ok := r.runs[documentID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	run.RequestCancel()
	return true
}

// ScheduleEviction drops the run from the registry after the TTL, but only
// if it is still the registered run for that document (a newer run may have
// replaced it in the meantime).
func (r *Registry) ScheduleEviction(documentID string, run *Run) {
	time.AfterFunc(r.ttl, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if current, ok := r.runs[documentID]; ok && current == run {
			delete(r.runs, documentID)
		}
	})
}

// Len reports the number of registered runs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
