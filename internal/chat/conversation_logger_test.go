package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/dreamtales/internal/domain"
	"github.com/ashureev/dreamtales/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationLoggerWritesNDJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "conversations.ndjson")
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:   true,
		Path:      path,
		QueueSize: 16,
	}, slog.Default())
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	logger.Log(newEvent(domain.ModeChild, "sess-1", DirectionOutbound, EventUserMessage, "tell me   a story"))

	line := waitForLogLine(t, path)
	var got ConversationLogEvent
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "child", got.Mode)
	assert.Equal(t, "tell me   a story", got.ContentRaw)
	assert.Equal(t, "tell me a story", got.Content)
}

func TestConversationLoggerDisabledIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: false}, nil)
	require.NoError(t, err)
	logger.Log(ConversationLogEvent{EventType: EventUserMessage})
	assert.NoError(t, logger.Close())
}

func TestConversationLoggerRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewConversationLogger(ConversationLogConfig{Enabled: true}, nil)
	require.Error(t, err)
}

func TestConversationLoggerIgnoresEventsAfterClose(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "c.ndjson")
	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Path: path, QueueSize: 4}, nil)
	require.NoError(t, err)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	logger.Log(ConversationLogEvent{EventType: EventUserMessage})
}

func TestServiceLogsTurns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "c.ndjson")
	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Path: path, QueueSize: 16}, nil)
	require.NoError(t, err)

	f := newFixture(t, llm.NewMock())
	svc := NewService(f.transcripts, f.prompts, f.bridge, f.gateway, logger)
	_, err = svc.Chat(context.Background(), domain.ModeChild, sessionID, "hello")
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first, second ConversationLogEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, EventUserMessage, first.EventType)
	assert.Equal(t, true, first.Meta["new_story"])
	assert.Equal(t, EventAssistantMessage, second.EventType)
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	clean := cleanForReadability("\x1b[31merror\x1b[0m   plain\r\n")
	assert.NotContains(t, clean, "\x1b[31m")
	assert.Equal(t, "error plain", clean)
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
