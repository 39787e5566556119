package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
	"github.com/contextq/contextq/internal/services/rag"
)

// chatRequest is the inbound JSON body for POST /api/chat. Omitting doc_ids
// searches every document in the session; an explicit list narrows the
// question to those documents.
type chatRequest struct {
	Question string   `json:"question" validate:"required,max=2000"`
	DocIDs   []string `json:"doc_ids"`
}

// ChatHandler streams answers over Server-Sent Events
type ChatHandler struct {
	ragService *rag.Service
	history    interfaces.HistoryService
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewChatHandler creates a chat handler
func NewChatHandler(ragService *rag.Service, history interfaces.HistoryService, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{
		ragService: ragService,
		history:    history,
		validate:   validator.New(),
		logger:     logger,
	}
}

// StreamHandler handles POST /api/chat. The response is an SSE stream of
// pipeline events: sources, content fragments, then done or error.
func (h *ChatHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Question is required and must be at most 2000 characters")
		return
	}

	sessionID := SessionID(w, r)

	events, err := h.ragService.StreamAnswer(r.Context(), &models.ChatRequest{
		SessionID: sessionID,
		Question:  req.Question,
		DocIDs:    req.DocIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrEmptyQuestion):
			WriteError(w, http.StatusBadRequest, "Question is empty")
		case errors.Is(err, rag.ErrQuestionTooLong):
			WriteError(w, http.StatusBadRequest, "Question exceeds maximum length")
		case errors.Is(err, rag.ErrMissingSession):
			WriteError(w, http.StatusBadRequest, "Session is required")
		default:
			h.logger.Error().Err(err).Msg("Failed to start answer stream")
			WriteError(w, http.StatusInternalServerError, "Failed to start answer stream")
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to marshal stream event")
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// ClearHandler handles POST /api/chat/clear, dropping the session's
// conversation history
func (h *ChatHandler) ClearHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	sessionID := SessionID(w, r)
	if err := h.history.ClearSession(r.Context(), sessionID); err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to clear chat history")
		WriteError(w, http.StatusInternalServerError, "Failed to clear chat history")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
