package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/documind/internal/telemetry"
)

// The middleware records through the global meter, so the instruments only
// reach the Prometheus registry once the telemetry providers are installed.
func TestHTTPMetrics_AppearInMetricsScrape(t *testing.T) {
	tel, err := telemetry.New(telemetry.Config{ServiceName: "documind", ServiceVersion: "test"})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, tel.Shutdown(context.Background()))
	})

	m := NewHTTPMetrics(zap.NewNop())
	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	for range 5 {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	}

	scrape := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := scrape.Body.String()
	assert.Contains(t, body, "documind_http_requests")
	assert.Contains(t, body, "documind_http_request_duration_seconds")
}
