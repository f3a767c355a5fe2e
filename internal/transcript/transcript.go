// Package transcript persists per-(mode, session) chat histories in the
// key-value store.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashureev/dreamtales/internal/domain"
	"github.com/ashureev/dreamtales/internal/store"
)

const (
	// MaxStored is the number of messages kept on write.
	MaxStored = 50
	// MaxReturned is the number of messages handed back to clients.
	MaxReturned = 20
	// TTL is how long an idle transcript survives.
	TTL = 7 * 24 * time.Hour
)

// Store reads and writes transcripts. Read-modify-write cycles are not
// atomic; concurrent turns on one session are last-write-wins.
type Store struct {
	kv store.Store
}

// New creates a transcript store over kv.
func New(kv store.Store) *Store {
	return &Store{kv: kv}
}

// Key returns the storage key for a mode and session.
func Key(mode domain.Mode, sessionID string) string {
	return "chat:" + string(mode) + ":" + sessionID
}

// Get returns the full stored transcript, or an empty slice if none exists.
func (s *Store) Get(ctx context.Context, mode domain.Mode, sessionID string) ([]domain.ChatMessage, error) {
	raw, found, err := s.kv.Get(ctx, Key(mode, sessionID))
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if !found {
		return []domain.ChatMessage{}, nil
	}

	var history []domain.ChatMessage
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if history == nil {
		history = []domain.ChatMessage{}
	}
	return history, nil
}

// Save truncates history to the last MaxStored entries, persists it and
// refreshes the expiry.
func (s *Store) Save(ctx context.Context, mode domain.Mode, sessionID string, history []domain.ChatMessage) error {
	trimmed := Tail(history, MaxStored)
	data, err := json.Marshal(trimmed)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := s.kv.Put(ctx, Key(mode, sessionID), string(data), TTL); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// Append adds messages to the end of the stored transcript and returns the
// saved result.
func (s *Store) Append(ctx context.Context, mode domain.Mode, sessionID string, msgs ...domain.ChatMessage) ([]domain.ChatMessage, error) {
	history, err := s.Get(ctx, mode, sessionID)
	if err != nil {
		return nil, err
	}
	history = append(history, msgs...)
	if err := s.Save(ctx, mode, sessionID, history); err != nil {
		return nil, err
	}
	return Tail(history, MaxStored), nil
}

// Recent returns the last MaxReturned messages.
func (s *Store) Recent(ctx context.Context, mode domain.Mode, sessionID string) ([]domain.ChatMessage, error) {
	history, err := s.Get(ctx, mode, sessionID)
	if err != nil {
		return nil, err
	}
	return Tail(history, MaxReturned), nil
}

// Clear deletes the transcript.
func (s *Store) Clear(ctx context.Context, mode domain.Mode, sessionID string) error {
	if err := s.kv.Delete(ctx, Key(mode, sessionID)); err != nil {
		return fmt.Errorf("clear transcript: %w", err)
	}
	return nil
}

// Tail returns the last n messages of history as a fresh slice.
func Tail(history []domain.ChatMessage, n int) []domain.ChatMessage {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]domain.ChatMessage, len(history))
	copy(out, history)
	return out
}
