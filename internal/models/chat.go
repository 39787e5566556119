package models

import (
	"time"
)

// Chat message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single persisted turn in a session's conversation
type ChatMessage struct {
	ID        string    `json:"id" badgerhold:"key"` // msg_{uuid}
	SessionID string    `json:"session_id" badgerholdIndex:"SessionID"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"` // Citations for assistant messages
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is a rolling LLM-generated digest of an older
// conversation, regenerated periodically as the message count grows
type ConversationSummary struct {
	SessionID    string    `json:"session_id" badgerhold:"key"`
	Summary      string    `json:"summary"`
	MessageCount int       `json:"message_count"` // Count at the time the summary was generated
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatRequest is the inbound question for the answer pipeline. DocIDs
// narrows retrieval to a subset of the session's documents: nil means every
// document, an explicit empty list scopes the question to none.
type ChatRequest struct {
	SessionID string   `json:"session_id" validate:"required"`
	Question  string   `json:"question" validate:"required,max=2000"`
	DocIDs    []string `json:"doc_ids,omitempty"`
}

// QueryAnalysis is the analyzer's routing decision for a question
type QueryAnalysis struct {
	SkipRAG            bool     `json:"skip_rag"`            // True for greetings/small talk needing no retrieval
	NeedsDecomposition bool     `json:"needs_decomposition"` // True when the question splits into sub-queries
	SubQueries         []string `json:"sub_queries,omitempty"`
	Reasoning          string   `json:"reasoning"`
	UsedLLM            bool     `json:"-"` // False when a fast path or fallback produced the decision
}

// Stream event types, in emission order: sources, content*, then done or error
const (
	StreamEventSources = "sources"
	StreamEventContent = "content"
	StreamEventDone    = "done"
	StreamEventError   = "error"
)

// StreamEvent is one frame of a streamed answer
type StreamEvent struct {
	Type       string   `json:"type"`
	Sources    []Source `json:"sources,omitempty"`     // Set for "sources" and "done"
	Content    string   `json:"content,omitempty"`     // Set for "content"
	FullAnswer string   `json:"full_answer,omitempty"` // Set for "done"
	Error      string   `json:"error,omitempty"`       // Set for "error"
}
