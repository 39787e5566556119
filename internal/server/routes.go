package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Chat (streaming Q&A)
	mux.HandleFunc("/api/chat", s.app.ChatHandler.StreamHandler)
	mux.HandleFunc("/api/chat/clear", s.app.ChatHandler.ClearHandler)

	// API routes - Documents
	mux.HandleFunc("POST /api/documents", s.app.DocumentHandler.UploadHandler)
	mux.HandleFunc("GET /api/documents", s.app.DocumentHandler.ListHandler)
	mux.HandleFunc("DELETE /api/documents/{id}", s.app.DocumentHandler.DeleteHandler)

	// API routes - Service info
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// Catch-all for unknown endpoints
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
