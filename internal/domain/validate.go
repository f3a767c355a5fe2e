package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxMessageLength bounds a single chat message, in characters.
	MaxMessageLength = 2000
	// MaxPromptLength bounds a custom system prompt, in characters.
	MaxPromptLength = 10000
)

// ValidateMessage checks a user chat message and returns it trimmed.
// Length is checked before trimming.
func ValidateMessage(message string) (string, error) {
	if message == "" {
		return "", NewValidationError("Message is required and must be a string")
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return "", NewValidationError(fmt.Sprintf("Message too long. Please keep it under %d characters.", MaxMessageLength))
	}
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", NewValidationError("Message cannot be empty")
	}
	return trimmed, nil
}

// ValidatePrompt checks a custom system prompt and returns it trimmed.
func ValidatePrompt(prompt string) (string, error) {
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return "", NewValidationError("Prompt too long. Please keep it under 10,000 characters.")
	}
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return "", NewValidationError("Prompt is required and must be a string")
	}
	return trimmed, nil
}
