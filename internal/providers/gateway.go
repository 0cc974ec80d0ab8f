package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Invocation is a completed gateway call: the normalized model output
// plus the accounting the caller records against the cost ledger.
type Invocation struct {
	ModelResponse
	CostUSD  float64
	Attempts int
	Duration time.Duration
}

// Gateway wraps a ModelClient with rate limiting, bounded retries and
// cost accounting. All pipeline phases go through it; nothing else in
// the codebase talks to a provider directly.
type Gateway struct {
	client  ModelClient
	limiter *rate.Limiter
	retries int
	log     *logrus.Logger
}

func NewGateway(client ModelClient, retries int, rps float64, log *logrus.Logger) *Gateway {
	if retries < 1 {
		retries = 1
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Gateway{client: client, limiter: limiter, retries: retries, log: log}
}

// Invoke performs the call with up to the configured number of
// attempts. Rate-limit and transient failures back off 2^attempt
// seconds between attempts; auth, quota and permanent failures
// propagate immediately.
func (g *Gateway) Invoke(ctx context.Context, req ModelRequest) (Invocation, error) {
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < g.retries; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return Invocation{}, fmt.Errorf("rate limiter wait: %w", err)
			}
		}
		resp, err := g.client.Complete(ctx, req)
		if err == nil {
			return Invocation{
				ModelResponse: resp,
				CostUSD:       CalcCost(resp.Model, resp.TokensIn, resp.TokensOut),
				Attempts:      attempt + 1,
				Duration:      time.Since(start),
			}, nil
		}
		kind := ClassifyError(err)
		lastErr = &ProviderError{Model: req.Model, Kind: kind, Attempts: attempt + 1, Err: err}
		if !Retryable(kind) || attempt == g.retries-1 {
			break
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		g.log.WithFields(logrus.Fields{
			"model":   req.Model,
			"kind":    string(kind),
			"attempt": attempt + 1,
			"backoff": backoff.String(),
		}).Warn("model call failed, retrying")
		select {
		case <-ctx.Done():
			return Invocation{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return Invocation{}, lastErr
}
