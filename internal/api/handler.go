// Package api provides HTTP handlers for the DreamTales API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/dreamtales/internal/bridge"
	"github.com/ashureev/dreamtales/internal/chat"
	"github.com/ashureev/dreamtales/internal/domain"
	"github.com/ashureev/dreamtales/internal/prompt"
	"github.com/go-chi/chi/v5"
)

// Client-facing messages for non-validation failures.
const (
	msgUpstream             = "Sorry, I'm having trouble responding right now. Please try again."
	msgInternal             = "Something went wrong. Please try again."
	msgConfigurationMissing = "No master prompt configured. Please set a master prompt before using the app."
	msgInvalidBody          = "Invalid request body"
	maxBodyBytes            = 64 << 10
)

// Handler serves the chat, history, prompt and parent-data endpoints.
type Handler struct {
	chat    *chat.Service
	prompts *prompt.Store
	bridge  *bridge.Bridge
}

// NewHandler creates a new Handler.
func NewHandler(svc *chat.Service, prompts *prompt.Store, b *bridge.Bridge) *Handler {
	return &Handler{chat: svc, prompts: prompts, bridge: b}
}

// RegisterRoutes registers the JSON API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/story/start", h.StartStory)
		r.Post("/chat", h.Chat)
		r.Get("/history", h.GetHistory)
		r.Delete("/history", h.ClearHistory)
		r.Get("/prompt", h.GetPrompt)
		r.Put("/prompt", h.SetPrompt)
		r.Delete("/prompt", h.ResetPrompt)
		r.Get("/parent-data", h.GetParentData)
		r.Delete("/parent-data", h.ClearParentData)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// statusFor maps a domain error to an HTTP status and client message.
// Upstream and storage details stay in the logs.
func statusFor(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests. Please wait a moment before trying again."
	case errors.Is(err, domain.ErrConfigurationMissing):
		return http.StatusInternalServerError, msgConfigurationMissing
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusInternalServerError, msgUpstream
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	Error(w, status, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return domain.NewValidationError(msgInvalidBody)
	}
	return nil
}

// decodeOptionalJSON is decodeJSON that accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return domain.NewValidationError(msgInvalidBody)
	}
	return nil
}

func modeFromRequest(r *http.Request) (domain.Mode, error) {
	return domain.ParseMode(r.URL.Query().Get("mode"))
}
