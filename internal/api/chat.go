package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/dreamtales/internal/chat"
	"github.com/ashureev/dreamtales/internal/domain"
	"github.com/ashureev/dreamtales/internal/identity"
)

type chatRequest struct {
	Message json.RawMessage `json:"message"`
	ChatID  string          `json:"chatId"`
}

type storyStartRequest struct {
	ChatID string `json:"chatId"`
	Seed   string `json:"seed"`
}

// ChatResponse is the result of a chat or story-start turn.
type ChatResponse struct {
	Response    string                  `json:"response"`
	ChatHistory []domain.ChatMessage    `json:"chatHistory"`
	ChatID      string                  `json:"chatId"`
	Consumed    bool                    `json:"consumed,omitempty"`
	ParentData  *domain.ParentDataBlock `json:"parentData,omitempty"`
}

func newChatResponse(res *chat.Result) ChatResponse {
	return ChatResponse{
		Response:    res.Response,
		ChatHistory: res.History,
		ChatID:      res.SessionID,
		Consumed:    res.Consumed,
		ParentData:  res.ParentData,
	}
}

// messageText accepts only a JSON string; anything else is a validation error.
func messageText(raw json.RawMessage) (string, error) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return "", domain.NewValidationError("Message is required and must be a string")
	}
	return s, nil
}

// Chat runs one turn for the session.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	mode, err := modeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	message, err := messageText(req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sessionID := identity.ResolveSessionID(r, req.ChatID)
	res, err := h.chat.Chat(r.Context(), mode, sessionID, message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, newChatResponse(res))
}

// StartStory clears the session transcript and runs the opening turn.
func (h *Handler) StartStory(w http.ResponseWriter, r *http.Request) {
	mode, err := modeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req storyStartRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ChatID == "" {
		req.ChatID = r.URL.Query().Get(identity.ChatIDParam)
	}

	sessionID := identity.ResolveSessionID(r, req.ChatID)
	res, err := h.chat.StartStory(r.Context(), mode, sessionID, req.Seed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, newChatResponse(res))
}

// GetHistory returns the most recent transcript entries.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	mode, err := modeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sessionID := identity.ResolveSessionID(r, r.URL.Query().Get(identity.ChatIDParam))
	history, err := h.chat.History(r.Context(), mode, sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, history)
}

// ClearHistory deletes the session transcript.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	mode, err := modeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sessionID := identity.ResolveSessionID(r, r.URL.Query().Get(identity.ChatIDParam))
	if err := h.chat.ClearHistory(r.Context(), mode, sessionID); err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Chat history cleared"})
}
