// Package server exposes the REST API and chat websocket.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"zenith/pkg/model"
	"zenith/pkg/session"
	"zenith/pkg/store"
)

// Server serves the HTTP API for sessions, settings, models and previews.
type Server struct {
	manager  *session.Manager
	sessions store.SessionStore
	messages store.MessageStore
	settings store.SettingsStore
	factory  *model.Factory
	srv      *http.Server
}

// New creates a new Server.
func New(
	manager *session.Manager,
	sessions store.SessionStore,
	messages store.MessageStore,
	settings store.SettingsStore,
	factory *model.Factory,
) *Server {
	return &Server{
		manager:  manager,
		sessions: sessions,
		messages: messages,
		settings: settings,
		factory:  factory,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting API server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Handler builds the API route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Sessions
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /api/sessions/{id}", s.handleRenameSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)

	// Conversation
	mux.HandleFunc("GET /api/sessions/{id}/messages", s.handleGetMessages)
	mux.HandleFunc("POST /api/sessions/{id}/abort", s.handleAbort)
	mux.HandleFunc("GET /api/sessions/{id}/status", s.handleStatus)

	// Project surfaces
	mux.HandleFunc("GET /api/sessions/{id}/project", s.handleGetProject)
	mux.HandleFunc("GET /api/sessions/{id}/preview", s.handlePreview)
	mux.HandleFunc("GET /api/sessions/{id}/export", s.handleExport)

	// Settings and models
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.HandleFunc("GET /api/models", s.handleListModels)

	// WebSocket
	mux.HandleFunc("/api/sessions/{id}/chat", s.handleChatWebSocket)

	return s.corsMiddleware(mux)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
