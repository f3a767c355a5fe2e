package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/ashureev/dreamtales/internal/config"
	"github.com/ashureev/dreamtales/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const instrumentationName = "github.com/ashureev/dreamtales/internal/llm"

// maxErrorBody caps how much of an upstream error body is logged.
const maxErrorBody = 4096

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIClient calls an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	httpClient  *http.Client
	apiURL      string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	limiter     *rate.Limiter
	tracer      trace.Tracer
	latency     metric.Float64Histogram
}

// NewOpenAIClient creates a client from configuration.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	return NewOpenAIClientWithHTTP(cfg, &http.Client{Timeout: cfg.Timeout})
}

// NewOpenAIClientWithHTTP creates a client that sends through httpClient.
func NewOpenAIClientWithHTTP(cfg config.LLMConfig, httpClient *http.Client) *OpenAIClient {
	limit := rate.Inf
	burst := 1
	if cfg.MaxRPS > 0 {
		limit = rate.Limit(cfg.MaxRPS)
		burst = int(math.Max(1, math.Ceil(cfg.MaxRPS)))
	}

	meter := otel.Meter(instrumentationName)
	latency, err := meter.Float64Histogram(
		"llm.request.duration",
		metric.WithDescription("Completion gateway call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		slog.Warn("failed to create llm latency histogram", "error", err)
	}

	return &OpenAIClient{
		httpClient:  httpClient,
		apiURL:      cfg.APIURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		limiter:     rate.NewLimiter(limit, burst),
		tracer:      otel.Tracer(instrumentationName),
		latency:     latency,
	}
}

// Complete sends one chat-completions request and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, span := c.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.messages", len(messages)),
	))
	defer span.End()

	start := time.Now()
	reply, err := c.complete(ctx, messages)
	if c.latency != nil {
		c.latency.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Bool("error", err != nil)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

func (c *OpenAIClient) complete(ctx context.Context, messages []Message) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: wait for send slot: %v", domain.ErrUpstream, err)
	}

	body, err := json.Marshal(openAIRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", domain.ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %v", domain.ErrUpstream, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("failed to close llm response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Error("Completion gateway returned error",
			"status", resp.StatusCode,
			"body", string(errBody),
		)
		return "", fmt.Errorf("%w: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var completion openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrUpstream, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: response had no choices", domain.ErrUpstream)
	}
	return completion.Choices[0].Message.Content, nil
}

var _ Completer = (*OpenAIClient)(nil)
