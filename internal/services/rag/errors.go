package rag

import (
	"errors"
)

// Validation errors returned synchronously by StreamAnswer before any
// pipeline work starts
var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrQuestionTooLong = errors.New("question exceeds maximum length")
	ErrMissingSession  = errors.New("session id is required")
)

// User-facing fallback answers for pipeline branches that end without
// generation. These are fixed strings, not LLM output.
const (
	FallbackNoDocuments = "No documents have been uploaded yet. Please upload some documents first."
	FallbackNoRelevant  = "I couldn't find any relevant information in the uploaded documents for your question."
)
