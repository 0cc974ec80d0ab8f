package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"paperlens/internal/models"
)

// Usage accumulates provider spend attributable to rendering.
type Usage struct {
	Model     string
	TokensIn  int
	TokensOut int
	CostUSD   float64
}

func (u *Usage) add(other Usage) {
	if other.Model != "" {
		u.Model = other.Model
	}
	u.TokensIn += other.TokensIn
	u.TokensOut += other.TokensOut
	u.CostUSD += other.CostUSD
}

// Renderer turns one planned target into a concrete artifact, filling the
// target's Status and output fields in place.
type Renderer interface {
	Kind() string
	Render(ctx context.Context, dir string, target *models.VisualizationTarget) (Usage, error)
}

// Fanout renders every target concurrently, dispatching each to the renderer
// registered for its kind. A failed target is marked status error with the
// failure message and never takes down its siblings; Fanout itself only
// reports total spend.
func Fanout(ctx context.Context, renderers []Renderer, dir string, targets []models.VisualizationTarget, log *logrus.Logger) ([]models.VisualizationTarget, Usage) {
	byKind := make(map[string]Renderer, len(renderers))
	for _, r := range renderers {
		byKind[r.Kind()] = r
	}

	out := make([]models.VisualizationTarget, len(targets))
	copy(out, targets)

	var (
		mu    sync.Mutex
		total Usage
		wg    sync.WaitGroup
	)
	for i := range out {
		wg.Add(1)
		go func(t *models.VisualizationTarget) {
			defer wg.Done()
			r, ok := byKind[t.Kind]
			if !ok {
				t.Status = models.StatusError
				t.ErrorMsg = fmt.Sprintf("no renderer for kind %q", t.Kind)
				return
			}
			usage, err := r.Render(ctx, dir, t)
			mu.Lock()
			total.add(usage)
			mu.Unlock()
			if err != nil {
				t.Status = models.StatusError
				t.ErrorMsg = err.Error()
				if log != nil {
					log.WithFields(logrus.Fields{
						"kind":  t.Kind,
						"title": t.Title,
					}).WithError(err).Warn("render target failed")
				}
				return
			}
			t.Status = models.StatusCompleted
		}(&out[i])
	}
	wg.Wait()
	return out, total
}
