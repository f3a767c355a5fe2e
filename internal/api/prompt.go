package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ashureev/dreamtales/internal/domain"
)

type promptRequest struct {
	Prompt json.RawMessage `json:"prompt"`
}

// GetPrompt returns the effective prompt for a mode.
func (h *Handler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	mode, err := modeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.prompts.Get(r.Context(), mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"prompt":   p.Text,
		"isCustom": p.IsCustom(),
	})
}

// SetPrompt stores a custom prompt for a mode.
func (h *Handler) SetPrompt(w http.ResponseWriter, r *http.Request) {
	mode, err := modeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req promptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var text string
	if len(req.Prompt) == 0 || json.Unmarshal(req.Prompt, &text) != nil {
		writeError(w, r, domain.NewValidationError("Prompt is required and must be a string"))
		return
	}

	saved, err := h.prompts.Set(r.Context(), mode, text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"message": "Prompt updated successfully",
		"prompt":  saved,
	})
}

// ResetPrompt removes the custom prompt and reports the fallback now in effect.
func (h *Handler) ResetPrompt(w http.ResponseWriter, r *http.Request) {
	mode, err := modeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.prompts.Reset(r.Context(), mode); err != nil {
		writeError(w, r, err)
		return
	}

	resp := map[string]string{"message": "Prompt reset to default"}
	fallback, err := h.prompts.Fallback(r.Context(), mode)
	switch {
	case err == nil:
		resp["prompt"] = fallback.Text
	case !errors.Is(err, domain.ErrConfigurationMissing):
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// GetParentData returns the stored parent block, or null.
func (h *Handler) GetParentData(w http.ResponseWriter, r *http.Request) {
	pd, err := h.bridge.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, pd)
}

// ClearParentData deletes the stored parent block.
func (h *Handler) ClearParentData(w http.ResponseWriter, r *http.Request) {
	if err := h.bridge.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Parent data cleared"})
}
