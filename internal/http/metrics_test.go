package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/bridge"
	"github.com/fyrsmithlabs/focusd/internal/logging"
	"github.com/fyrsmithlabs/focusd/internal/telemetry"
)

func TestMetricsMiddleware(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	logger := logging.NewTestLogger()
	metrics := NewHTTPMetrics(tel.Meter(httpInstrumentationName), logger.Logger)

	srv, err := NewServer(batch.New(bridge.NewMemory(), batch.Config{}, logger.Logger), logger.Logger, &Config{
		Host:    "localhost",
		Port:    0,
		Metrics: metrics,
	})
	require.NoError(t, err)

	doJSON(t, srv, http.MethodGet, "/health", nil)
	doJSON(t, srv, http.MethodGet, "/health", nil)
	doJSON(t, srv, http.MethodPost, "/api/v1/batches", map[string]any{"operations": []any{}})
	doJSON(t, srv, http.MethodGet, "/wp-login.php", nil)

	assert.Equal(t, int64(2), tel.CounterValue(t, "focusd.http.requests_total",
		attribute.String("endpoint", "/health"), attribute.Int("status", http.StatusOK)))
	assert.Equal(t, int64(1), tel.CounterValue(t, "focusd.http.requests_total",
		attribute.String("endpoint", "/api/v1/batches"), attribute.Int("status", http.StatusUnprocessableEntity)))
	assert.Equal(t, int64(1), tel.CounterValue(t, "focusd.http.requests_total",
		attribute.Int("status", http.StatusNotFound)))
	assert.Equal(t, int64(0), tel.CounterValue(t, "focusd.http.requests_total",
		attribute.String("endpoint", "/wp-login.php")))
	assert.Equal(t, uint64(4), tel.HistogramCount(t, "focusd.http.request_duration_seconds"))
	assert.Equal(t, int64(0), tel.CounterValue(t, "focusd.http.active_requests"))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/health", "/health"},
		{"/api/v1/batches/plan", "/api/v1/batches/plan"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in))
	}
}
