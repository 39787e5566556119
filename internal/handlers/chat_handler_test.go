package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/models"
	"github.com/contextq/contextq/internal/services/rag"
)

func newTestChatHandler(t *testing.T, docCount int, history *stubHistory) *ChatHandler {
	t.Helper()
	logger := arbor.NewLogger()
	config := common.NewDefaultConfig()

	generator := &stubGenerator{}
	analyzer, err := rag.NewAnalyzer(&config.LLM, generator, logger)
	require.NoError(t, err)

	ragService := rag.NewService(
		config,
		analyzer,
		rag.NewRetriever(&config.RAG, &stubEmbedder{}, &stubVectorStore{}, logger),
		rag.NewFilter(&config.RAG, logger),
		rag.NewAssembler(&config.RAG),
		generator,
		history,
		&stubDocumentStorage{docCount: docCount},
		nil,
		logger,
	)

	return NewChatHandler(ragService, history, logger)
}

func postChat(handler *ChatHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.StreamHandler(recorder, req)
	return recorder
}

func TestStreamHandlerRejectsBadRequests(t *testing.T) {
	handler := newTestChatHandler(t, 0, &stubHistory{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{not json"},
		{"missing question", `{}`},
		{"blank question", `{"question": "   "}`},
		{"question too long", `{"question": "` + strings.Repeat("a", 2100) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := postChat(handler, tt.body)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
		})
	}
}

func TestStreamHandlerRejectsWrongMethod(t *testing.T) {
	handler := newTestChatHandler(t, 0, &stubHistory{})

	req := httptest.NewRequest("GET", "/api/chat", nil)
	recorder := httptest.NewRecorder()
	handler.StreamHandler(recorder, req)

	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

func TestStreamHandlerEmitsSSEFrames(t *testing.T) {
	// No documents in the session drives the fixed fallback answer, which
	// exercises the full event order without touching a provider
	handler := newTestChatHandler(t, 0, &stubHistory{})

	recorder := postChat(handler, `{"question": "what does the report say"}`)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", recorder.Header().Get("Cache-Control"))

	body := recorder.Body.String()
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	require.Len(t, frames, 3)

	var events []models.StreamEvent
	for _, frame := range frames {
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q missing SSE prefix", frame)

		var event models.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &event))
		events = append(events, event)
	}

	assert.Equal(t, models.StreamEventSources, events[0].Type)
	assert.Equal(t, models.StreamEventContent, events[1].Type)
	assert.Equal(t, models.StreamEventDone, events[2].Type)
	assert.Equal(t, events[1].Content, events[2].FullAnswer)
}

func TestStreamHandlerMintsSessionCookie(t *testing.T) {
	handler := newTestChatHandler(t, 0, &stubHistory{})

	recorder := postChat(handler, `{"question": "what does the report say"}`)

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "contextq_session", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestStreamHandlerReusesSessionCookie(t *testing.T) {
	handler := newTestChatHandler(t, 0, &stubHistory{})

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"question": "what does the report say"}`))
	req.AddCookie(&http.Cookie{Name: "contextq_session", Value: "existing-session"})
	recorder := httptest.NewRecorder()
	handler.StreamHandler(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Result().Cookies(), "existing sessions keep their cookie")
}

func TestClearHandler(t *testing.T) {
	history := &stubHistory{}
	handler := newTestChatHandler(t, 0, history)

	req := httptest.NewRequest("POST", "/api/chat/clear", nil)
	req.AddCookie(&http.Cookie{Name: "contextq_session", Value: "s1"})
	recorder := httptest.NewRecorder()
	handler.ClearHandler(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, []string{"s1"}, history.cleared)
}

func TestClearHandlerFailure(t *testing.T) {
	history := &stubHistory{clearErr: context.DeadlineExceeded}
	handler := newTestChatHandler(t, 0, history)

	req := httptest.NewRequest("POST", "/api/chat/clear", nil)
	req.AddCookie(&http.Cookie{Name: "contextq_session", Value: "s1"})
	recorder := httptest.NewRecorder()
	handler.ClearHandler(recorder, req)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestResolveContentType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		declared string
		want     string
	}{
		{"declared type wins", "file.bin", "application/pdf", "application/pdf"},
		{"octet-stream falls back to extension", "notes.txt", "application/octet-stream", "text/plain; charset=utf-8"},
		{"pdf extension", "doc.pdf", "", "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveContentType(tt.filename, tt.declared)
			assert.Contains(t, got, strings.Split(tt.want, ";")[0])
		})
	}
}
