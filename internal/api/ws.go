package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/dreamtales/internal/chat"
	"github.com/ashureev/dreamtales/internal/domain"
	"github.com/ashureev/dreamtales/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const wsWriteTimeout = 10 * time.Second

// Limiter decides whether a client may run another turn.
type Limiter interface {
	Allow(ctx context.Context, clientID string) (bool, error)
}

type wsError struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// WebSocketHandler runs chat turns over a websocket. Each text frame
// {"message": "..."} is one turn and is rate limited on its own.
type WebSocketHandler struct {
	chat    *chat.Service
	limiter Limiter
}

// NewWebSocketHandler creates a new WebSocketHandler. A nil limiter disables
// per-frame limiting.
func NewWebSocketHandler(svc *chat.Service, limiter Limiter) *WebSocketHandler {
	return &WebSocketHandler{chat: svc, limiter: limiter}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mode, err := modeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sessionID := identity.ResolveSessionID(r, r.URL.Query().Get(identity.ChatIDParam))
	clientKey := identity.ClientKeyFromContext(r.Context())
	if clientKey == identity.UnknownOrigin {
		clientKey = identity.ClientKey(r)
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	slog.Info("Chat websocket opened", "mode", mode, "session_id", sessionID)
	h.readLoop(r.Context(), ws, mode, sessionID, clientKey)
	slog.Info("Chat websocket closed", "mode", mode, "session_id", sessionID)
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, mode domain.Mode, sessionID, clientKey string) {
	for {
		var req chatRequest
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		if err := h.write(ctx, ws, h.turn(ctx, mode, sessionID, clientKey, req)); err != nil {
			slog.Warn("WebSocket write error", "error", err, "session_id", sessionID)
			return
		}
	}
}

func (h *WebSocketHandler) turn(ctx context.Context, mode domain.Mode, sessionID, clientKey string, req chatRequest) interface{} {
	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, clientKey)
		if err != nil {
			slog.Error("Rate limiter store error", "client", clientKey, "allowed", allowed, "error", err)
		}
		if !allowed {
			return frameError(domain.ErrRateLimited)
		}
	}

	message, err := messageText(req.Message)
	if err != nil {
		return frameError(err)
	}
	res, err := h.chat.Chat(ctx, mode, sessionID, message)
	if err != nil {
		if status, _ := statusFor(err); status >= http.StatusInternalServerError {
			slog.Error("WebSocket turn failed", "mode", mode, "session_id", sessionID, "error", err)
		}
		return frameError(err)
	}
	return newChatResponse(res)
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, v)
}

func frameError(err error) wsError {
	status, msg := statusFor(err)
	return wsError{Error: msg, Status: status}
}
