package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `gramy_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `gramy_http_request_duration_seconds_bucket{route="/test"`)
}

func TestMetricsActionAndInvalidationCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveAction("follow", "success")
	metrics.ObserveAction("follow", "success")
	metrics.ObserveAction("follow", "authorization")
	metrics.ObserveInvalidation("profile", nil)
	metrics.ObserveInvalidation("game", errors.New("redis down"))

	body := scrape(t, metrics)
	assert.Contains(t, body, `gramy_actions_total{action="follow",outcome="success"} 2`)
	assert.Contains(t, body, `gramy_actions_total{action="follow",outcome="authorization"} 1`)
	assert.Contains(t, body, `gramy_view_invalidations_total{kind="profile",status="ok"} 1`)
	assert.Contains(t, body, `gramy_view_invalidations_total{kind="game",status="error"} 1`)
}

func TestMetricsDefaultsStatusAndSharesRegistry(t *testing.T) {
	metrics := NewMetrics()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "gramy_extra_total", Help: "extra"})
	metrics.Registerer().MustRegister(counter)
	counter.Inc()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	body := scrape(t, metrics)
	assert.Contains(t, body, `gramy_http_requests_total{code="200",route="unmatched"} 1`)
	assert.Contains(t, body, "gramy_http_requests_in_flight 0")
	assert.Contains(t, body, "gramy_extra_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveAction("x", "success")
	metrics.ObserveInvalidation("x", nil)
	assert.NotNil(t, metrics.Registerer())

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
