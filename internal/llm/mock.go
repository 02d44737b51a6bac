package llm

import (
	"context"
	"sync"

	"nutricoach-api/internal/domain"
)

// MockCall registra una invocación a MockGateway.
type MockCall struct {
	Prior   []domain.Message
	Message string
}

// MockGateway permite tests sin llamar a un LLM real.
type MockGateway struct {
	Response string
	Err      error
	// Fn, si no es nil, reemplaza Response/Err.
	Fn func(ctx context.Context, prior []domain.Message, msg string) (string, error)

	mu    sync.Mutex
	calls []MockCall
}

func (m *MockGateway) GenerateReply(ctx context.Context, prior []domain.Message, newUserMessage string) (string, error) {
	m.mu.Lock()
	snapshot := make([]domain.Message, len(prior))
	copy(snapshot, prior)
	m.calls = append(m.calls, MockCall{Prior: snapshot, Message: newUserMessage})
	fn := m.Fn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prior, newUserMessage)
	}
	return m.Response, m.Err
}

func (m *MockGateway) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
