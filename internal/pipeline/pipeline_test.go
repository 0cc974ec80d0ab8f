package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"paperlens/internal/models"
	"paperlens/internal/providers"
	"paperlens/internal/storage"
	"paperlens/internal/viz"
)

// fakeStore is an in-memory stand-in for every store interface the
// orchestrator consumes.
type fakeStore struct {
	mu              sync.Mutex
	docs            map[string]models.Document
	classifications map[string]models.DomainClassification
	figures         map[string][]models.Figure
	results         []models.PhaseResult
	ledger          []models.LedgerEntry
	plans           []models.VisualizationPlan
	texts           map[string]string
	budget          float64
	nextID          int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:            make(map[string]models.Document),
		classifications: make(map[string]models.DomainClassification),
		figures:         make(map[string][]models.Figure),
		texts:           make(map[string]string),
		budget:          50,
	}
}

func (s *fakeStore) addDoc(id, title, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash := "hash-" + id
	s.docs[id] = models.Document{
		DocumentID:  id,
		Filename:    id + ".pdf",
		Title:       title,
		ContentHash: hash,
		Status:      models.DocPending,
	}
	s.texts[hash] = text
	s.classifications[id] = models.DomainClassification{
		Domain: "optics_photonics", Confidence: 0.9, Method: models.MethodKeyword,
	}
}

func (s *fakeStore) GetDocument(_ context.Context, id string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return models.Document{}, storage.ErrNotFound
	}
	return doc, nil
}

func (s *fakeStore) UpdateDocumentStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return storage.ErrNotFound
	}
	doc.Status = status
	s.docs[id] = doc
	return nil
}

func (s *fakeStore) GetClassification(_ context.Context, id string) (models.DomainClassification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dc, ok := s.classifications[id]
	if !ok || dc.Domain == "" {
		return models.DomainClassification{}, storage.ErrNotFound
	}
	return dc, nil
}

func (s *fakeStore) SetDomain(_ context.Context, id string, dc models.DomainClassification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifications[id] = dc
	return nil
}

func (s *fakeStore) GetFigures(_ context.Context, id string) ([]models.Figure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.figures[id], nil
}

func (s *fakeStore) AddCost(_ context.Context, id string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.docs[id]
	doc.TotalCost += delta
	s.docs[id] = doc
	return nil
}

func (s *fakeStore) InsertResult(_ context.Context, p models.PhaseResult) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.results = append(s.results, p)
	return p.ID, nil
}

func (s *fakeStore) LatestPerPhase(_ context.Context, id string) ([]models.PhaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := map[string]models.PhaseResult{}
	for _, r := range s.results {
		if r.DocumentID == id {
			latest[r.Phase] = r
		}
	}
	out := make([]models.PhaseResult, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) InsertEntry(_ context.Context, e models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append(s.ledger, e)
	return nil
}

func (s *fakeStore) SumMonth(_ context.Context, now time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	for _, e := range s.ledger {
		if e.CreatedAt.Year() == now.Year() && e.CreatedAt.Month() == now.Month() {
			sum += e.CostUSD
		}
	}
	return sum, nil
}

func (s *fakeStore) SavePlan(_ context.Context, plan models.VisualizationPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = append(s.plans, plan)
	return nil
}

func (s *fakeStore) MonthlyBudget(_ context.Context, fallback float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.budget > 0 {
		return s.budget, nil
	}
	return fallback, nil
}

func (s *fakeStore) Get(hash string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.texts[hash]
	return text, ok, nil
}

func (s *fakeStore) phaseRows(id string) []models.PhaseResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PhaseResult
	for _, r := range s.results {
		if r.DocumentID == id {
			out = append(out, r)
		}
	}
	return out
}

func (s *fakeStore) docStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id].Status
}

// clientFunc lets a test script provider behavior per request.
type clientFunc func(ctx context.Context, req providers.ModelRequest) (providers.ModelResponse, error)

func (f clientFunc) Complete(ctx context.Context, req providers.ModelRequest) (providers.ModelResponse, error) {
	return f(ctx, req)
}

func okJSON(req providers.ModelRequest) providers.ModelResponse {
	return providers.ModelResponse{
		Text:      `{"summary":"ok"}`,
		Model:     req.Model,
		TokensIn:  1000,
		TokensOut: 200,
	}
}

var testModels = Models{
	Screening: "gemini-3-flash-preview",
	Recipe:    "gemini-3-pro-preview",
	DeepDive:  "claude-sonnet-4-5-20250929",
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newTestPipeline(t *testing.T, store *fakeStore, client providers.ModelClient) *Pipeline {
	t.Helper()
	log := quietLogger()
	return New(Deps{
		Registry:          NewRegistry(time.Hour),
		Gateway:           providers.NewGateway(client, 1, 0, log),
		Viz:               viz.NewRouter(nil, "", log),
		Docs:              store,
		Phases:            store,
		Ledger:            store,
		Plans:             store,
		Budget:            store,
		Texts:             store,
		Models:            testModels,
		BudgetFallbackUSD: 50,
		DataRoot:          t.TempDir(),
		Log:               log,
	})
}

func waitForRun(t *testing.T, p *Pipeline, documentID string) Snapshot {
	t.Helper()
	run, ok := p.registry.Get(documentID)
	require.True(t, ok, "run not registered")
	select {
	case <-run.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish in time")
	}
	return run.Snapshot()
}

const paperText = `Laser Ablation of Thin Films

ABSTRACT

We study pulsed laser ablation of oxide thin films and report threshold fluences.

1. INTRODUCTION

Context and motivation.

2. METHODS

Films were deposited at 300 C and ablated with a 1064 nm source.

3. RESULTS AND DISCUSSION

Threshold fluence scaled with film thickness.

4. CONCLUSION

Ablation thresholds are reported for three oxides.`

func TestStartUnknownDocument(t *testing.T) {
	p := newTestPipeline(t, newFakeStore(), clientFunc(func(_ context.Context, req providers.ModelRequest) (providers.ModelResponse, error) {
		return okJSON(req), nil
	}))
	out, err := p.Start(context.Background(), "missing")
	require.NoError(t, err)
	require.Equal(t, StartNotFound, out.Code)
}

func TestRunAllPhasesSucceed(t *testing.T) {
	store := newFakeStore()
	store.addDoc("doc-1", "Laser Ablation of Thin Films", paperText)
	p := newTestPipeline(t, store, clientFunc(func(_ context.Context, req providers.ModelRequest) (providers.ModelResponse, error) {
		return okJSON(req), nil
	}))

	out, err := p.Start(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, StartAccepted, out.Code)

	snap := waitForRun(t, p, "doc-1")
	require.Equal(t, models.StatusCompleted, snap.Status)
	require.Equal(t, 100, snap.Progress)
	require.Equal(t, models.DocCompleted, store.docStatus("doc-1"))

	rows := store.phaseRows("doc-1")
	require.Len(t, rows, 5)
	for _, r := range rows {
		require.Equal(t, models.StatusCompleted, r.Status)
	}
	// Four model phases spent tokens; the empty visualization plan did not.
	require.Len(t, store.ledger, 4)
	require.Greater(t, snap.CostUSD, 0.0)
	require.Equal(t, 4000, snap.TokensIn)
	require.Len(t, store.plans, 1)
}

func TestVisualPhasePromptCarriesSectionText(t *testing.T) {
	store := newFakeStore()
	store.addDoc("doc-1", "Laser Ablation of Thin Films", paperText)

	var mu sync.Mutex
	var visualPrompt string
	p := newTestPipeline(t, store, clientFunc(func(_ context.Context, req providers.ModelRequest) (providers.ModelResponse, error) {
		if strings.HasPrefix(req.Prompt, "Assess the figures") {
			mu.Lock()
			visualPrompt = req.Prompt
			mu.Unlock()
		}
		return okJSON(req), nil
	}))

	out, err := p.Start(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, StartAccepted, out.Code)
	waitForRun(t, p, "doc-1")

	mu.Lock()
	got := visualPrompt
	mu.Unlock()
	require.Contains(t, got, "Relevant sections:")
	require.Contains(t, got, "ablated with a 1064 nm source")
	require.Contains(t, got, "Threshold fluence scaled with film thickness")
	// Section text, not bare section names.
	require.NotContains(t, got, "results_discussion")
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	require.Equal(t, "short", truncate("short", 24000))

	// "µ" is two bytes; a cut of 6 would land mid-rune.
	s := strings.Repeat("µ", 4)
	got := truncate(s, 5)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, strings.Repeat("µ", 2), got)

	require.Equal(t, "abc", truncate("abcdef", 3))
}

func TestConcurrentStartExactlyOneWins(t *testing.T) {
	store := newFakeStore()
	store.addDoc("doc-1", "Laser Ablation of Thin Films", paperText)

	release := make(chan struct{})
	p := newTestPipeline(t, store, clientFunc(func(ctx context.Context, req providers.ModelRequest) (providers.ModelResponse, error) {
		select {
		case <-release:
			return okJSON(req), nil
		case <-ctx.Done():
			return providers.ModelResponse{}, ctx.Err()
		}
	}))

	outcomes := make(chan string, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := p.Start(context.Background(), "doc-1")
			require.NoError(t, err)
			outcomes <- out.Code
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[string]int{}
	for code := range outcomes {
		counts[code]++
	}
	require.Equal(t, 1, counts[StartAccepted])
	require.Equal(t, 1, counts[StartConflict])

	close(release)
	waitForRun(t, p, "doc-1")
}

func TestProgressIsMonotonic(t *testing.T) {
	run := newRun("doc-1")
	// Visual can finish before Screening; the later, lower floor must not
	// regress progress.
	run.raiseProgress(models.PhaseVisual)
	require.Equal(t, 40, run.Snapshot().Progress)
	run.raiseProgress(models.PhaseScreening)
	require.Equal(t, 40, run.Snapshot().Progress)
	run.raiseProgress(models.PhaseRecipe)
	require.Equal(t, 60, run.Snapshot().Progress)
	run.raiseProgress(models.PhaseVisualization)
	require.Equal(t, 100, run.Snapshot().Progress)
	run.raiseProgress(models.PhaseDeepDive)
	require.Equal(t, 100, run.Snapshot().Progress)
}

func TestPartialFailureStillCompletes(t *testing.T) {
	store := newFakeStore()
	store.addDoc("doc-1", "Laser Ablation of Thin Films", paperText)
	// Screening and Visual share the screening-tier model; fail both.
	p := newTestPipeline(t, store, clientFunc(func(_ context.Context, req providers.ModelRequest) (providers.ModelResponse, error) {
		if req.Model == testModels.Screening {
			return providers.ModelResponse{}, errors.New("invalid request")
		}
		return okJSON(req), nil
	}))

	out, err := p.Start(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, StartAccepted, out.Code)

	snap := waitForRun(t, p, "doc-1")
	require.Equal(t, models.StatusCompleted, snap.Status)
	require.Equal(t, models.DocCompleted, store.docStatus("doc-1"))

	byPhase := map[string]PhaseState{}
	for _, ph := range snap.Phases {
		byPhase[ph.Phase] = ph
	}
	require.Equal(t, models.StatusError, byPhase[models.PhaseScreening].Status)
	require.Equal(t, models.StatusError, byPhase[models.PhaseVisual].Status)
	require.Equal(t, models.StatusCompleted, byPhase[models.PhaseRecipe].Status)
	require.Equal(t, models.StatusCompleted, byPhase[models.PhaseDeepDive].Status)
}

func TestAllPhasesFailMarksRunError(t *testing.T) {
	store := newFakeStore()
	store.addDoc("doc-1", "Laser Ablation of Thin Films", paperText)
	p := newTestPipeline(t, store, clientFunc(func(_ context.Context, _ providers.ModelRequest) (providers.ModelResponse, error) {
		return providers.ModelResponse{}, errors.New("invalid request")
	}))

	_, err := p.Start(context.Background(), "doc-1")
	require.NoError(t, err)

	snap := waitForRun(t, p, "doc-1")
	require.Equal(t, models.StatusError, snap.Status)
	require.Equal(t, models.DocError, store.docStatus("doc-1"))
	for _, ph := range snap.Phases {
		require.Equal(t, models.StatusError, ph.Status, ph.Phase)
	}
}

func TestCancelBetweenPhasesSkipsTheRest(t *testing.T) {
	store := newFakeStore()
	store.addDoc("doc-1", "Laser Ablation of Thin Films", paperText)

	var p *Pipeline
	var calls atomic.Int64
	client := clientFunc(func(_ context.Context, req providers.ModelRequest) (providers.ModelResponse, error) {
		// Flag cancellation once Screening and Visual have both been
		// served; the boundary before Recipe must observe it.
		if calls.Add(1) == 2 {
			p.Cancel("doc-1")
		}
		return okJSON(req), nil
	})
	p = newTestPipeline(t, store, client)

	_, err := p.Start(context.Background(), "doc-1")
	require.NoError(t, err)

	snap := waitForRun(t, p, "doc-1")
	require.Equal(t, models.StatusCancelled, snap.Status)
	require.Equal(t, models.DocCancelled, store.docStatus("doc-1"))
	require.EqualValues(t, 2, calls.Load())
	require.Len(t, store.phaseRows("doc-1"), 2)

	byPhase := map[string]PhaseState{}
	for _, ph := range snap.Phases {
		byPhase[ph.Phase] = ph
	}
	require.Equal(t, models.StatusPending, byPhase[models.PhaseRecipe].Status)
	require.Equal(t, models.StatusPending, byPhase[models.PhaseDeepDive].Status)
	require.Equal(t, models.StatusPending, byPhase[models.PhaseVisualization].Status)
}

func TestBudgetExceededCreatesNoState(t *testing.T) {
	store := newFakeStore()
	store.addDoc("doc-1", "Laser Ablation of Thin Films", paperText)
	store.budget = 10
	store.ledger = append(store.ledger, models.LedgerEntry{
		DocumentID: "doc-0",
		CostUSD:    12.5,
		CreatedAt:  time.Now().UTC(),
	})
	p := newTestPipeline(t, store, clientFunc(func(_ context.Context, req providers.ModelRequest) (providers.ModelResponse, error) {
		return okJSON(req), nil
	}))

	out, err := p.Start(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, StartBudgetExceeded, out.Code)
	require.InDelta(t, 12.5, out.SpendUSD, 1e-9)
	require.InDelta(t, 10.0, out.LimitUSD, 1e-9)

	require.Empty(t, store.phaseRows("doc-1"))
	require.Equal(t, 0, p.registry.Len())
	require.Equal(t, models.DocPending, store.docStatus("doc-1"))
}

func TestUnparseableResponseIsStillCompleted(t *testing.T) {
	store := newFakeStore()
	store.addDoc("doc-1", "Laser Ablation of Thin Films", paperText)
	p := newTestPipeline(t, store, clientFunc(func(_ context.Context, req providers.ModelRequest) (providers.ModelResponse, error) {
		return providers.ModelResponse{
			Text:      "not json at all",
			Model:     req.Model,
			TokensIn:  100,
			TokensOut: 10,
		}, nil
	}))

	_, err := p.Start(context.Background(), "doc-1")
	require.NoError(t, err)
	snap := waitForRun(t, p, "doc-1")
	// Model phases completed with fallback payloads; visualization had no
	// parseable upstream output, but one success is all a run needs.
	require.Equal(t, models.StatusCompleted, snap.Status)

	for _, row := range store.phaseRows("doc-1") {
		if row.Phase == models.PhaseVisualization {
			require.Equal(t, models.StatusError, row.Status)
			continue
		}
		require.Equal(t, models.StatusCompleted, row.Status)
		require.True(t, providers.IsFallbackPayload(row.Payload))
		require.Contains(t, string(row.Payload), "not json at all")
		require.Contains(t, string(row.Payload), "parse_error")
	}
}

func TestCancelWithoutRun(t *testing.T) {
	p := newTestPipeline(t, newFakeStore(), clientFunc(func(_ context.Context, req providers.ModelRequest) (providers.ModelResponse, error) {
		return okJSON(req), nil
	}))
	require.False(t, p.Cancel("doc-1"))
	_, ok := p.Status("doc-1")
	require.False(t, ok)
}

func TestRegistryEvictsAfterTTL(t *testing.T) {
	reg := NewRegistry(30 * time.Millisecond)
	run, err := reg.Begin("doc-1")
	require.NoError(t, err)

	_, err = reg.Begin("doc-1")
	require.ErrorIs(t, err, ErrConflict)

	run.finish(models.StatusCompleted)
	reg.ScheduleEviction("doc-1", run)

	// A terminal run can be replaced before eviction fires.
	replacement, err := reg.Begin("doc-1")
	require.NoError(t, err)
	require.NotSame(t, run, replacement)

	// The stale eviction must not remove the replacement.
	time.Sleep(80 * time.Millisecond)
	current, ok := reg.Get("doc-1")
	require.True(t, ok)
	require.Same(t, replacement, current)

	replacement.finish(models.StatusCompleted)
	reg.ScheduleEviction("doc-1", replacement)
	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 10*time.Millisecond)
}
