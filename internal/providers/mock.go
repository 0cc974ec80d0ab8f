package providers

import (
	"context"
	"sync"
)

// MockClient is a scriptable ModelClient for tests. Responses are
// consumed in order; when the queue is empty Fallback is returned.
type MockClient struct {
	mu        sync.Mutex
	queue     []mockReply
	Fallback  ModelResponse
	Requests  []ModelRequest
}

type mockReply struct {
	resp ModelResponse
	err  error
}

func NewMockClient() *MockClient {
	return &MockClient{
		Fallback: ModelResponse{Text: `{}`, Model: "mock", TokensIn: 1, TokensOut: 1},
	}
}

func (m *MockClient) Enqueue(resp ModelResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{resp: resp})
}

func (m *MockClient) EnqueueErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{err: err})
}

func (m *MockClient) Complete(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return ModelResponse{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if len(m.queue) == 0 {
		resp := m.Fallback
		if resp.Model == "" {
			resp.Model = req.Model
		}
		return resp, nil
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	if next.err != nil {
		return ModelResponse{}, next.err
	}
	if next.resp.Model == "" {
		next.resp.Model = req.Model
	}
	return next.resp, nil
}

// CallCount reports how many Complete calls were observed.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
