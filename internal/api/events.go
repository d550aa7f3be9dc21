package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shaharia-lab/tablebus/internal/journal"
)

const sseKeepAlive = 25 * time.Second

type emitRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// handleListTypes returns the event catalog with live subscriber counts.
func (s *Server) handleListTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eventSvc.Types())
}

// handleGetHistory returns the bus history, oldest first.
func (s *Server) handleGetHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eventSvc.History())
}

func (s *Server) handleClearHistory(w http.ResponseWriter, _ *http.Request) {
	s.eventSvc.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

// handleEmit publishes an event on the bus. Delivery is synchronous, so the
// response is written after every subscriber has run.
func (s *Server) handleEmit(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	e, err := s.eventSvc.Emit(r.Context(), req.Type, req.Payload)
	if err != nil {
		s.writeServiceError(w, err, "failed to emit event")
		return
	}
	writeJSON(w, http.StatusAccepted, e)
}

// handleStream relays bus events to the client as Server-Sent Events until
// the client disconnects. Repeat ?type= to select event types; none means all
// known types. ?buffer=N sizes the per-client queue, capped at
// service.MaxStreamBuffer. A client that cannot keep up is disconnected.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	types := r.URL.Query()["type"]
	buffer := 0
	if b := r.URL.Query().Get("buffer"); b != "" {
		if n, err := strconv.Atoi(b); err == nil && n > 0 {
			buffer = n
		}
	}

	stream, err := s.eventSvc.Stream(types, buffer)
	if err != nil {
		s.writeServiceError(w, err, "failed to subscribe")
		return
	}
	defer stream.Close()

	// Set SSE headers. From here on we can only send events, not JSON errors
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	if !ok {
		sendSSEEvent(w, nil, "error", map[string]string{"error": "streaming not supported"})
		return
	}
	sendSSEEvent(w, flusher, "ready", map[string]any{"types": stream.Types(), "buffer": stream.Buffer()})

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case e, open := <-stream.Events():
			if !open {
				if stream.Overflowed() {
					s.logger.Warn("sse client too slow, disconnecting")
					sendSSEEvent(w, flusher, "error", map[string]string{"error": "client too slow"})
				}
				return
			}
			sendSSEEvent(w, flusher, e.Type, e)
		}
	}
}

// handleListJournal returns journaled events, newest first.
// Accepts ?bus_id=, ?type=, ?after=<sequence> and ?limit=N (default 50).
// ?after without ?bus_id pages through the live bus.
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := journal.Filter{
		BusID: q.Get("bus_id"),
		Type:  q.Get("type"),
		Limit: journal.DefaultListLimit,
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if a := q.Get("after"); a != "" {
		n, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after sequence")
			return
		}
		f.AfterSequence = n
	}

	entries, err := s.eventSvc.Journal(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, err, "failed to list journal")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
