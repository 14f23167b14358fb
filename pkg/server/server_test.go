package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	handlers "github.com/de-tools/msp-atlas/pkg/handlers/reports"
	"github.com/de-tools/msp-atlas/pkg/models/api"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/observability"
	"github.com/de-tools/msp-atlas/pkg/services/metrics"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	mock.Mock
	metrics.Engine
}

func (m *mockEngine) Names() []string {
	return m.Called().Get(0).([]string)
}

func (m *mockEngine) Definition(name string) (metrics.Definition, error) {
	args := m.Called(name)
	return args.Get(0).(metrics.Definition), args.Error(1)
}

func (m *mockEngine) Compute(ctx context.Context, tenant domain.TenantID, name string, rng domain.DateRange, filters domain.Filters) (metrics.Result, error) {
	args := m.Called(ctx, tenant, name, rng, filters)
	return args.Get(0).(metrics.Result), args.Error(1)
}

func setupServer(t *testing.T, cfg Config) (*mockEngine, *httptest.Server) {
	t.Helper()
	engine := new(mockEngine)
	cfg.Dependencies.Reports = handlers.Dependencies{
		Engine: engine,
		Now:    func() time.Time { return time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC) },
	}
	web := NewWebAPI(zerolog.Nop(), cfg)
	srv := httptest.NewServer(web.Handler())
	t.Cleanup(srv.Close)
	return engine, srv
}

func get(t *testing.T, url string, tenant string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	_, srv := setupServer(t, Config{})
	resp := get(t, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIRequiresTenant(t *testing.T) {
	_, srv := setupServer(t, Config{})

	resp := get(t, srv.URL+"/api/v1/metrics", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Error)
}

func TestListMetricsRoute(t *testing.T) {
	engine, srv := setupServer(t, Config{})
	engine.On("Names").Return([]string{"mrr"})
	engine.On("Definition", "mrr").Return(metrics.Definition{Name: "mrr", Label: "Monthly Recurring Revenue", Format: domain.FormatCurrency}, nil)

	resp := get(t, srv.URL+"/api/v1/metrics", "3")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var defs []api.MetricDefinition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&defs))
	require.Len(t, defs, 1)
	assert.Equal(t, "Monthly Recurring Revenue", defs[0].Label)
	engine.AssertExpectations(t)
}

func TestMetricRouteUsesTenant(t *testing.T) {
	engine, srv := setupServer(t, Config{})
	engine.On("Compute", mock.Anything, domain.TenantID(42), "open_tickets", mock.Anything, domain.Filters{}).
		Return(metrics.Result{Name: "open_tickets", Scalar: 4}, nil)

	resp := get(t, srv.URL+"/api/v1/metrics/open_tickets", "42")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	engine.AssertExpectations(t)
}

func TestPrometheusEndpoint(t *testing.T) {
	m := observability.NewMetrics()
	_, srv := setupServer(t, Config{Dependencies: Dependencies{Metrics: m}})

	get(t, srv.URL+"/healthz", "")
	resp := get(t, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `msp_atlas_http_requests_total{route="/healthz",status="200"} 1`)
}

func TestCORS(t *testing.T) {
	_, srv := setupServer(t, Config{CORSOrigins: []string{"https://portal.example.com"}})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://portal.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "X-Tenant-ID")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://portal.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	_, srv := setupServer(t, Config{RateLimit: 0.001, RateBurst: 1})

	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/healthz", "").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, get(t, srv.URL+"/healthz", "").StatusCode)
}

func TestStartStopsOnCancel(t *testing.T) {
	web := NewWebAPI(zerolog.Nop(), Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- web.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
