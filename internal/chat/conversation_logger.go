package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/dreamtales/internal/domain"
	"github.com/google/uuid"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Directions relative to the completion gateway.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
	DirectionNone     = "local"
)

// Event types.
const (
	EventUserMessage        = "user_message"
	EventAssistantMessage   = "assistant_message"
	EventGatewayError       = "gateway_error"
	EventStoryStarted       = "story_started"
	EventHistoryCleared     = "history_cleared"
	EventParentDataCaptured = "parent_data_captured"
)

// ConversationLogEvent is one NDJSON line in the conversation log.
type ConversationLogEvent struct {
	ID         string         `json:"id"`
	Timestamp  string         `json:"ts"`
	Mode       string         `json:"mode"`
	SessionID  string         `json:"session_id"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw,omitempty"`
	Content    string         `json:"content,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

func newEvent(mode domain.Mode, sessionID, direction, eventType, content string) ConversationLogEvent {
	return ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Mode:       string(mode),
		SessionID:  sessionID,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
	}
}

func (e ConversationLogEvent) with(key string, value any) ConversationLogEvent {
	meta := make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		meta[k] = v
	}
	meta[key] = value
	e.Meta = meta
	return e
}

// ConversationLogger records conversation events without blocking turns.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

// ConversationLogConfig configures NewConversationLogger.
type ConversationLogConfig struct {
	Enabled   bool
	Path      string
	QueueSize int
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

type fileConversationLogger struct {
	queue     chan ConversationLogEvent
	out       *lumberjack.Logger
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewConversationLogger returns an async NDJSON logger writing to a rotating
// file, or a no-op logger when disabled. Events are dropped when the queue is full.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return noopConversationLogger{}, nil
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("conversation log path is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create conversation log directory: %w", err)
	}

	l := &fileConversationLogger{
		queue: make(chan ConversationLogEvent, cfg.QueueSize),
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		},
		logger: logger,
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" && event.ContentRaw != "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("conversation log queue full, dropping event", "event_type", event.EventType)
	}
}

func (l *fileConversationLogger) run() {
	defer close(l.done)
	enc := json.NewEncoder(l.out)
	for event := range l.queue {
		if err := enc.Encode(event); err != nil {
			l.logger.Warn("failed to write conversation log event", "error", err)
		}
	}
}

func (l *fileConversationLogger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()

		<-l.done
		err = l.out.Close()
	})
	return err
}

var (
	ansiPattern       = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	whitespacePattern = regexp.MustCompile(`[ \t]+`)
)

// cleanForReadability strips terminal escapes and collapses runs of spaces.
func cleanForReadability(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
