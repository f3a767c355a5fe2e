// Package llm is the completion gateway: the outbound call to the
// large-language-model API that produces assistant replies.
package llm

import (
	"context"

	"github.com/ashureev/dreamtales/internal/domain"
)

// Message is one entry of an outbound chat-completions request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces the assistant reply for a conversation. Implementations
// do not retry; errors wrap domain.ErrUpstream.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// BuildMessages prepends the system prompt to the transcript. Error-flagged
// entries are client-side artifacts and are never sent upstream.
func BuildMessages(systemPrompt string, history []domain.ChatMessage) []Message {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, Message{Role: string(domain.RoleSystem), Content: systemPrompt})
	for _, m := range history {
		if m.IsError {
			continue
		}
		msgs = append(msgs, Message{Role: string(m.Role), Content: m.Content})
	}
	return msgs
}
