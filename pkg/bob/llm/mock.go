package llm

import (
	"context"
	"sync"
)

// MockClient is a Client for tests and examples.
// It returns scripted responses and records every request it receives.
type MockClient struct {
	mu sync.Mutex

	fixed     string
	responses []*CompletionResponse
	err       error
	fn        func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Calls records every request, in order.
	Calls []CompletionRequest

	next int
}

// Compile-time interface check.
var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock that always returns the given content.
func NewMockClient(content string) *MockClient {
	return &MockClient{fixed: content}
}

// WithResponses scripts a cycle of text responses, returned in order.
// After the last response the cycle starts over.
func (m *MockClient) WithResponses(contents ...string) *MockClient {
	m.responses = make([]*CompletionResponse, len(contents))
	for i, c := range contents {
		m.responses[i] = &CompletionResponse{Content: c, FinishReason: "stop"}
	}
	return m
}

// WithScript scripts a cycle of full responses, letting tests stage
// tool-call requests and usage data.
func (m *MockClient) WithScript(responses ...*CompletionResponse) *MockClient {
	m.responses = responses
	return m
}

// WithError makes every call fail with the given error.
func (m *MockClient) WithError(err error) *MockClient {
	m.err = err
	return m
}

// WithCompleteFunc installs a custom handler, overriding all other
// scripting.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.fn = fn
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn := m.fn
	err := m.err

	var resp *CompletionResponse
	switch {
	case fn != nil, err != nil:
	case len(m.responses) > 0:
		resp = m.responses[m.next%len(m.responses)]
		m.next++
	default:
		resp = &CompletionResponse{Content: m.fixed, FinishReason: "stop"}
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CallCount returns the number of Complete calls received.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil if none were made.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return &m.Calls[len(m.Calls)-1]
}
