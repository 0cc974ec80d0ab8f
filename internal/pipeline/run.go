package pipeline

import (
	"sync"
	"time"

	"paperlens/internal/models"
)

// Progress floor each phase raises the run to. Floors are applied with a
// monotonic max so concurrent phases can finish in either order without the
// reported progress ever regressing.
var progressFloor = map[string]int{
	models.PhaseScreening:     20,
	models.PhaseVisual:        40,
	models.PhaseRecipe:        60,
	models.PhaseDeepDive:      80,
	models.PhaseVisualization: 100,
}

// ProgressFloor reports the progress value a phase raises a run to.
func ProgressFloor(phase string) int {
	return progressFloor[phase]
}

// PhaseState is the per-phase slice of a run snapshot.
type PhaseState struct {
	Phase    string  `json:"phase"`
	Status   string  `json:"status"`
	CostUSD  float64 `json:"cost_usd"`
	ErrorMsg string  `json:"error_message,omitempty"`
}

// Snapshot is a consistent copy of a run's state, safe to serve after the
// run itself has moved on.
type Snapshot struct {
	DocumentID  string       `json:"document_id"`
	Status      string       `json:"status"`
	Progress    int          `json:"progress"`
	Phases      []PhaseState `json:"phases"`
	CostUSD     float64      `json:"cost_usd"`
	TokensIn    int          `json:"tokens_in"`
	TokensOut   int          `json:"tokens_out"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Run is the in-memory state of one pipeline execution. All mutation goes
// through its methods; the orchestrator goroutine is the only writer once
// the run leaves the registry, except for the cancellation flag.
type Run struct {
	documentID string

	mu          sync.Mutex
	status      string
	progress    int
	phases      map[string]*PhaseState
	costUSD     float64
	tokensIn    int
	tokensOut   int
	cancelled   bool
	startedAt   time.Time
	completedAt *time.Time
	done        chan struct{}
}

func newRun(documentID string) *Run {
	phases := make(map[string]*PhaseState, len(phaseOrder))
	for _, name := range phaseOrder {
		phases[name] = &PhaseState{Phase: name, Status: models.StatusPending}
	}
	return &Run{
		documentID: documentID,
		status:     models.StatusRunning,
		phases:     phases,
		startedAt:  time.Now().UTC(),
		done:       make(chan struct{}),
	}
}

var phaseOrder = []string{
	models.PhaseScreening,
	models.PhaseVisual,
	models.PhaseRecipe,
	models.PhaseDeepDive,
	models.PhaseVisualization,
}

func (r *Run) setPhase(phase, status, errMsg string, cost float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.phases[phase]
	if !ok {
		st = &PhaseState{Phase: phase}
		r.phases[phase] = st
	}
	st.Status = status
	st.ErrorMsg = errMsg
	st.CostUSD += cost
}

// raiseProgress moves progress up to the phase's floor, never down.
func (r *Run) raiseProgress(phase string) {
	floor, ok := progressFloor[phase]
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if floor > r.progress {
		r.progress = floor
	}
}

func (r *Run) addUsage(tokensIn, tokensOut int, costUSD float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokensIn += tokensIn
	r.tokensOut += tokensOut
	r.costUSD += costUSD
}

// RequestCancel sets the cooperative cancellation flag. The run observes it
// at the next phase boundary; an in-flight provider call is never
// interrupted.
func (r *Run) RequestCancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
}

func (r *Run) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *Run) finish(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completedAt != nil {
		return
	}
	now := time.Now().UTC()
	r.status = status
	r.completedAt = &now
	close(r.done)
}

func (r *Run) terminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completedAt != nil
}

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := Snapshot{
		DocumentID: r.documentID,
		Status:     r.status,
		Progress:   r.progress,
		CostUSD:    r.costUSD,
		TokensIn:   r.tokensIn,
		TokensOut:  r.tokensOut,
		StartedAt:  r.startedAt,
	}
	if r.completedAt != nil {
		at := *r.completedAt
		snap.CompletedAt = &at
	}
	for _, name := range phaseOrder {
		if st, ok := r.phases[name]; ok {
			snap.Phases = append(snap.Phases, *st)
		}
	}
	return snap
}
