package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"paperlens/internal/logger"
)

func TestGatewayReturnsFirstSuccess(t *testing.T) {
	mock := NewMockClient()
	mock.Enqueue(ModelResponse{Text: "ok", Model: "gemini-3-flash-preview", TokensIn: 1000, TokensOut: 500})
	gw := NewGateway(mock, 3, 0, logger.New())

	inv, err := gw.Invoke(context.Background(), ModelRequest{Prompt: "p", Model: "gemini-3-flash-preview"})
	require.NoError(t, err)
	require.Equal(t, "ok", inv.Text)
	require.Equal(t, 1, inv.Attempts)
	require.InDelta(t, 0.0003, inv.CostUSD, 1e-9)
	require.Equal(t, 1, mock.CallCount())
}

func TestGatewayRetriesTransientThenSucceeds(t *testing.T) {
	mock := NewMockClient()
	mock.EnqueueErr(&statusError{code: 503, body: "upstream unavailable"})
	mock.Enqueue(ModelResponse{Text: "ok", Model: "gemini-3-flash-preview", TokensIn: 10, TokensOut: 10})
	gw := NewGateway(mock, 3, 0, logger.New())

	inv, err := gw.Invoke(context.Background(), ModelRequest{Prompt: "p", Model: "gemini-3-flash-preview"})
	require.NoError(t, err)
	require.Equal(t, 2, inv.Attempts)
	require.Equal(t, 2, mock.CallCount())
}

func TestGatewayDoesNotRetryAuthFailure(t *testing.T) {
	mock := NewMockClient()
	mock.EnqueueErr(&statusError{code: 401, body: "bad key"})
	gw := NewGateway(mock, 3, 0, logger.New())

	_, err := gw.Invoke(context.Background(), ModelRequest{Prompt: "p", Model: "gemini-3-flash-preview"})
	require.Error(t, err)
	require.Equal(t, 1, mock.CallCount())

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, ErrorAuth, perr.Kind)
}

func TestGatewayExhaustsRetries(t *testing.T) {
	mock := NewMockClient()
	mock.EnqueueErr(&statusError{code: 429, body: "rate limited"})
	mock.EnqueueErr(&statusError{code: 429, body: "rate limited"})
	gw := NewGateway(mock, 2, 0, logger.New())

	_, err := gw.Invoke(context.Background(), ModelRequest{Prompt: "p", Model: "gemini-3-flash-preview"})
	require.Error(t, err)
	require.Equal(t, 2, mock.CallCount())

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, ErrorRate, perr.Kind)
	require.Equal(t, 2, perr.Attempts)
}

func TestGatewayCancelledContext(t *testing.T) {
	mock := NewMockClient()
	gw := NewGateway(mock, 3, 0, logger.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gw.Invoke(ctx, ModelRequest{Prompt: "p", Model: "gemini-3-flash-preview"})
	require.Error(t, err)
}
