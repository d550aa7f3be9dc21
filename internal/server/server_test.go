package server_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/tablebus/internal/api"
	"github.com/shaharia-lab/tablebus/internal/eventbus"
	"github.com/shaharia-lab/tablebus/internal/metrics"
	"github.com/shaharia-lab/tablebus/internal/server"
	"github.com/shaharia-lab/tablebus/internal/service"
)

func newTestServer(t *testing.T) (*server.Server, *eventbus.Bus) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	require.NoError(t, err)

	bus := eventbus.New(eventbus.WithObserver(collector))
	require.NoError(t, collector.Track(bus))

	svc := service.NewEventService(bus, nil, logger)
	srv := server.New(api.New(svc, logger), server.Config{
		Port:           0,
		AllowedOrigins: []string{"https://shell.example.com"},
		Gatherer:       reg,
	}, logger)
	return srv, bus
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestEmitThenHistoryThroughRouter(t *testing.T) {
	srv, bus := newTestServer(t)
	h := srv.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/events",
		strings.NewReader(`{"type":"order:created","payload":{"order_id":"o1","customer_name":"Ann"}}`)))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, bus.HistoryLen())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events/history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"customer_name":"Ann"`)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `tablebus_events_emitted_total{type="order:created"} 1`)
	assert.Contains(t, w.Body.String(), `tablebus_history_events 1`)
}

func TestEmitRejectsUndeclaredPayloadField(t *testing.T) {
	srv, bus := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/events",
		strings.NewReader(`{"type":"order:created","payload":{"id":"o1"}}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown field")
	assert.Equal(t, 0, bus.HistoryLen())
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
	req.Header.Set("Origin", "https://shell.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "https://shell.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
