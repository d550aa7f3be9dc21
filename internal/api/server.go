package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/tablebus/internal/service"
)

const errInvalidJSONBody = "invalid JSON body"

// Server holds all dependencies for the REST API handlers.
type Server struct {
	eventSvc service.EventService
	logger   *slog.Logger
}

// New creates a new API Server backed by the provided services.
func New(eventSvc service.EventService, logger *slog.Logger) *Server {
	return &Server{
		eventSvc: eventSvc,
		logger:   logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	r.Get("/version", s.handleVersion)

	// Event bus introspection
	r.Get("/events/types", s.handleListTypes)
	r.Get("/events/history", s.handleGetHistory)
	r.Delete("/events/history", s.handleClearHistory)
	r.Post("/events", s.handleEmit)
	r.Get("/events/stream", s.handleStream)

	// Journal
	r.Get("/journal", s.handleListJournal)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors to HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, service.ErrJournalDisabled):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	b, _ := json.Marshal(data)
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(b))
	if flusher != nil {
		flusher.Flush()
	}
}
