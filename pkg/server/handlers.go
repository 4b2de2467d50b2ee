package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"zenith/pkg/domain"
	"zenith/pkg/model"
	"zenith/pkg/project"
	"zenith/pkg/sandbox"
	"zenith/pkg/store"
)

// --- Sessions ---

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListSessions(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	s.jsonResponse(w, http.StatusOK, sessions)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	sess, err := s.manager.CreateSession(r.Context(), req.Title)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("title is required"))
		return
	}

	if err := s.sessions.RenameSession(r.Context(), r.PathValue("id"), req.Title); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Conversation ---

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.GetSession(r.Context(), r.PathValue("id")); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}

	messages, err := s.messages.GetMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	s.jsonResponse(w, http.StatusOK, messages)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	s.manager.Abort(r.PathValue("id"))
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": string(s.manager.Status(r.PathValue("id"))),
	})
}

// --- Project surfaces ---

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.manager.Project(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

// handlePreview serves the composed live-preview document. The document
// includes the console interceptor, so a browser loading it reports logs
// back over the chat websocket.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.manager.Project(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(sandbox.ComposePreview(p)))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, err := s.manager.Project(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="zenith-project.zip"`)
	if err := project.WriteZip(w, p); err != nil {
		slog.Error("Failed to write export archive", "error", err)
	}
}

// --- Settings and models ---

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.GetSettings(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if !domain.ValidProvider(settings.Provider) {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("unknown provider: %q", settings.Provider))
		return
	}

	if err := s.settings.SaveSettings(r.Context(), settings); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, settings)
}

// handleListModels aggregates the models of every provider that has an API
// key configured. A provider that fails to answer is skipped with a warning
// rather than failing the whole listing.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.GetSettings(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}

	result := make(map[string][]model.ModelInfo)
	for _, name := range []string{domain.ProviderGoogle, domain.ProviderGroq, domain.ProviderOpenAI} {
		provider, err := s.factory.ProviderFor(r.Context(), settings, name)
		if err != nil {
			if !errors.Is(err, model.ErrNoAPIKey) {
				slog.Warn("Provider unavailable", "provider", name, "error", err)
			}
			continue
		}

		infos, err := provider.List(r.Context())
		if err != nil {
			slog.Warn("Model listing failed", "provider", name, "error", err)
			continue
		}
		result[name] = infos
	}

	s.jsonResponse(w, http.StatusOK, result)
}

func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
