package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/services/documents"
)

// DocumentHandler manages document upload, listing, and deletion
type DocumentHandler struct {
	service *documents.Service
	maxSize int64
	logger  arbor.ILogger
}

// NewDocumentHandler creates a document handler
func NewDocumentHandler(service *documents.Service, maxUploadBytes int, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		maxSize: int64(maxUploadBytes),
		logger:  logger,
	}
}

// UploadHandler handles POST /api/documents: multipart form with a "file" part
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	sessionID := SessionID(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+1024)
	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		WriteError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing 'file' form field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	contentType := resolveContentType(header.Filename, header.Header.Get("Content-Type"))

	doc, err := h.service.Upload(r.Context(), sessionID, header.Filename, contentType, content)
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrDuplicate):
			// Idempotent: return the existing record
			WriteJSON(w, http.StatusOK, doc)
		case errors.Is(err, documents.ErrFileTooLarge):
			WriteError(w, http.StatusRequestEntityTooLarge, "File exceeds maximum size")
		case errors.Is(err, documents.ErrUnsupportedType):
			WriteError(w, http.StatusUnsupportedMediaType, "Unsupported file type (PDF, TXT, and Markdown are accepted)")
		case errors.Is(err, documents.ErrEmptyDocument):
			WriteError(w, http.StatusBadRequest, "Document contains no extractable text")
		case errors.Is(err, documents.ErrTooManyChunks):
			WriteError(w, http.StatusBadRequest, "Document is too large to index")
		default:
			h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Document upload failed")
			WriteError(w, http.StatusInternalServerError, "Document upload failed")
		}
		return
	}

	WriteJSON(w, http.StatusCreated, doc)
}

// ListHandler handles GET /api/documents
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	sessionID := SessionID(w, r)
	docs, err := h.service.List(r.Context(), sessionID)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to list documents")
		WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	// The index size is informational; a count failure degrades to zero
	// rather than failing the listing
	totalChunks, err := h.service.CountChunks(r.Context(), sessionID)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to count indexed chunks")
		totalChunks = 0
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents":    docs,
		"count":        len(docs),
		"total_chunks": totalChunks,
	})
}

// DeleteHandler handles DELETE /api/documents/{id}
func (h *DocumentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	documentID := r.PathValue("id")
	if documentID == "" {
		WriteError(w, http.StatusBadRequest, "Document id is required")
		return
	}

	sessionID := SessionID(w, r)
	if err := h.service.Delete(r.Context(), sessionID, documentID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Document not found")
			return
		}
		h.logger.Error().Err(err).Str("document_id", documentID).Msg("Failed to delete document")
		WriteError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// resolveContentType prefers the client-declared type, falling back to the
// file extension
func resolveContentType(filename, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}

	switch ext {
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	default:
		return declared
	}
}
