// Package chat runs story and chat turns: it ties transcripts, prompts, the
// parent data bridge and the completion gateway together.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/dreamtales/internal/bridge"
	"github.com/ashureev/dreamtales/internal/domain"
	"github.com/ashureev/dreamtales/internal/llm"
	"github.com/ashureev/dreamtales/internal/prompt"
	"github.com/ashureev/dreamtales/internal/transcript"
)

// DefaultSeeds open a story when the client sends no seed text.
var DefaultSeeds = map[domain.Mode]string{
	domain.ModeChild:  "Let's begin a new story.",
	domain.ModeParent: "Hello! I'd like to prepare tonight's story.",
}

// Result is the outcome of one completed turn.
type Result struct {
	Response   string
	History    []domain.ChatMessage // last transcript.MaxReturned entries
	SessionID  string
	Consumed   bool                    // parent block injected into this turn's prompt
	ParentData *domain.ParentDataBlock // block captured by this parent-mode turn
}

// Service orchestrates conversation turns.
type Service struct {
	transcripts *transcript.Store
	prompts     *prompt.Store
	bridge      *bridge.Bridge
	gateway     llm.Completer
	log         ConversationLogger
}

// NewService creates a chat service. A nil logger disables conversation logging.
func NewService(transcripts *transcript.Store, prompts *prompt.Store, b *bridge.Bridge, gateway llm.Completer, log ConversationLogger) *Service {
	if log == nil {
		log = noopConversationLogger{}
	}
	return &Service{
		transcripts: transcripts,
		prompts:     prompts,
		bridge:      b,
		gateway:     gateway,
		log:         log,
	}
}

// StartStory clears the transcript for mode and runs one seed exchange.
func (s *Service) StartStory(ctx context.Context, mode domain.Mode, sessionID, seed string) (*Result, error) {
	if seed == "" {
		seed = DefaultSeeds[mode]
	}
	seed, err := domain.ValidateMessage(seed)
	if err != nil {
		return nil, err
	}

	if err := s.transcripts.Clear(ctx, mode, sessionID); err != nil {
		return nil, err
	}
	s.log.Log(newEvent(mode, sessionID, DirectionNone, EventStoryStarted, ""))

	return s.turn(ctx, mode, sessionID, seed, []domain.ChatMessage{})
}

// Chat validates message and runs one turn against the stored transcript.
func (s *Service) Chat(ctx context.Context, mode domain.Mode, sessionID, message string) (*Result, error) {
	message, err := domain.ValidateMessage(message)
	if err != nil {
		return nil, err
	}

	history, err := s.transcripts.Get(ctx, mode, sessionID)
	if err != nil {
		return nil, err
	}
	return s.turn(ctx, mode, sessionID, message, history)
}

// History returns the most recent transcript entries.
func (s *Service) History(ctx context.Context, mode domain.Mode, sessionID string) ([]domain.ChatMessage, error) {
	return s.transcripts.Recent(ctx, mode, sessionID)
}

// ClearHistory deletes the transcript; the next turn starts a new story.
func (s *Service) ClearHistory(ctx context.Context, mode domain.Mode, sessionID string) error {
	if err := s.transcripts.Clear(ctx, mode, sessionID); err != nil {
		return err
	}
	s.log.Log(newEvent(mode, sessionID, DirectionNone, EventHistoryCleared, ""))
	return nil
}

// SystemPrompt resolves the prompt for a turn. On a child-mode new story the
// stored parent block is appended.
func (s *Service) SystemPrompt(ctx context.Context, mode domain.Mode, newStory bool) (string, bool, error) {
	p, err := s.prompts.Get(ctx, mode)
	if err != nil {
		return "", false, err
	}
	if mode != domain.ModeChild || !newStory {
		return p.Text, false, nil
	}
	return s.bridge.Consume(ctx, p.Text)
}

// turn persists the user message before calling the gateway, so a failed
// call leaves the user turn recorded without a reply.
func (s *Service) turn(ctx context.Context, mode domain.Mode, sessionID, message string, history []domain.ChatMessage) (*Result, error) {
	newStory := len(history) == 0

	systemPrompt, consumed, err := s.SystemPrompt(ctx, mode, newStory)
	if err != nil {
		return nil, err
	}

	history = append(history, domain.UserMessage(message))
	if err := s.transcripts.Save(ctx, mode, sessionID, history); err != nil {
		return nil, err
	}
	s.log.Log(newEvent(mode, sessionID, DirectionOutbound, EventUserMessage, message).
		with("new_story", newStory).with("consumed_parent_data", consumed))

	reply, err := s.gateway.Complete(ctx, llm.BuildMessages(systemPrompt, transcript.Tail(history, transcript.MaxStored)))
	if err != nil {
		slog.Error("Completion gateway call failed", "mode", mode, "session_id", sessionID, "error", err)
		s.log.Log(newEvent(mode, sessionID, DirectionInbound, EventGatewayError, "").with("error", err.Error()))
		return nil, fmt.Errorf("complete %s turn: %w", mode, err)
	}

	history = append(history, domain.AssistantMessage(reply))
	if err := s.transcripts.Save(ctx, mode, sessionID, history); err != nil {
		return nil, err
	}
	s.log.Log(newEvent(mode, sessionID, DirectionInbound, EventAssistantMessage, reply))

	result := &Result{
		Response:  reply,
		History:   transcript.Tail(history, transcript.MaxReturned),
		SessionID: sessionID,
		Consumed:  consumed,
	}

	if mode == domain.ModeParent {
		pd, err := s.bridge.Capture(ctx, message, reply)
		if err != nil {
			// The turn itself succeeded; a lost capture only affects the next child story.
			slog.Error("Failed to capture parent data", "session_id", sessionID, "error", err)
		} else if pd != nil {
			result.ParentData = pd
			s.log.Log(newEvent(mode, sessionID, DirectionNone, EventParentDataCaptured, pd.Block))
			slog.Info("Parent data captured", "session_id", sessionID, "length", len(pd.Block))
		}
	}

	return result, nil
}
