// Package domain contains core domain types for the DreamTales relay.
package domain

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem only appears in outbound gateway requests, never in a transcript.
	RoleSystem Role = "system"
)

// ChatMessage is a single transcript entry. Entries are never mutated after append.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

// UserMessage builds a user-authored message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage builds a model-authored message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}
