package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/dreamtales/internal/config"
	"github.com/ashureev/dreamtales/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) config.LLMConfig {
	return config.LLMConfig{
		Provider:    config.ProviderOpenAI,
		APIKey:      "sk-test",
		APIURL:      url,
		Model:       "gpt-4o",
		MaxTokens:   2000,
		Temperature: 0.7,
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var got openAIRequest
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"Once upon a time"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	c := NewOpenAIClient(testConfig(upstream.URL))
	reply, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "be gentle"},
		{Role: "user", Content: "a story about owls"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time", reply)

	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, 2000, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestOpenAIClientUpstreamError(t *testing.T) {
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"secret upstream detail"}}`, http.StatusBadGateway)
	}))
	defer upstream.Close()

	c := NewOpenAIClient(testConfig(upstream.URL))
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.NotContains(t, err.Error(), "secret upstream detail")
	assert.Equal(t, 1, calls, "no automatic retry")
}

func TestOpenAIClientNoChoices(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer upstream.Close()

	c := NewOpenAIClient(testConfig(upstream.URL))
	_, err := c.Complete(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrUpstream)
}

func TestOpenAIClientRespectsCancellation(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.MaxRPS = 0.001
	c := NewOpenAIClient(cfg)

	// The first call consumes the only token.
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = c.Complete(ctx, nil)
	cancel()

	_, err := c.Complete(ctx, nil)
	require.ErrorIs(t, err, domain.ErrUpstream)
}

func TestBuildMessagesSkipsErrorEntries(t *testing.T) {
	msgs := BuildMessages("sys", []domain.ChatMessage{
		domain.UserMessage("hello"),
		{Role: domain.RoleAssistant, Content: "oops", IsError: true},
		domain.AssistantMessage("hi there"),
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, Message{Role: "system", Content: "sys"}, msgs[0])
	assert.Equal(t, "hello", msgs[1].Content)
	assert.Equal(t, "hi there", msgs[2].Content)
}

func TestMockRecordsCalls(t *testing.T) {
	m := NewMock()
	reply, err := m.Complete(context.Background(), []Message{{Role: "user", Content: "dragons"}})
	require.NoError(t, err)
	assert.Contains(t, reply, "dragons")
	require.Len(t, m.Calls(), 1)
	assert.Equal(t, "dragons", m.LastCall()[0].Content)
}
