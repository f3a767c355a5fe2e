package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ashureev/dreamtales/internal/domain"
)

// MockClient is an offline Completer for local runs and tests.
type MockClient struct {
	mu    sync.Mutex
	reply func(messages []Message) (string, error)
	calls [][]Message
}

// NewMock returns a mock that answers with a short canned reply quoting the
// last user message.
func NewMock() *MockClient {
	return &MockClient{reply: func(messages []Message) (string, error) {
		last := ""
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == string(domain.RoleUser) {
				last = messages[i].Content
				break
			}
		}
		return fmt.Sprintf("Once upon a time, someone said %q. The end.", last), nil
	}}
}

// NewMockFunc returns a mock whose replies come from fn.
func NewMockFunc(fn func(messages []Message) (string, error)) *MockClient {
	return &MockClient{reply: fn}
}

// Complete implements Completer and records the request.
func (m *MockClient) Complete(_ context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	cp := make([]Message, len(messages))
	copy(cp, messages)
	m.calls = append(m.calls, cp)
	reply := m.reply
	m.mu.Unlock()

	return reply(cp)
}

// Calls returns every recorded request.
func (m *MockClient) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastCall returns the most recent request, or nil.
func (m *MockClient) LastCall() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

var _ Completer = (*MockClient)(nil)
