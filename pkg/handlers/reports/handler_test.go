package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/api"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/server/middleware"
	"github.com/de-tools/msp-atlas/pkg/services/executive"
	"github.com/de-tools/msp-atlas/pkg/services/metrics"
	"github.com/de-tools/msp-atlas/pkg/services/reports"
	"github.com/de-tools/msp-atlas/pkg/services/scheduler"
	"github.com/de-tools/msp-atlas/pkg/services/widgets"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	mock.Mock
	metrics.Engine
}

func (m *mockEngine) Compute(ctx context.Context, tenant domain.TenantID, name string, rng domain.DateRange, filters domain.Filters) (metrics.Result, error) {
	args := m.Called(ctx, tenant, name, rng, filters)
	return args.Get(0).(metrics.Result), args.Error(1)
}

func (m *mockEngine) Names() []string {
	return m.Called().Get(0).([]string)
}

func (m *mockEngine) Definition(name string) (metrics.Definition, error) {
	args := m.Called(name)
	return args.Get(0).(metrics.Definition), args.Error(1)
}

type mockWidgets struct {
	mock.Mock
	widgets.Renderer
}

func (m *mockWidgets) Render(ctx context.Context, tenant domain.TenantID, cfg domain.WidgetConfig) (domain.WidgetPayload, error) {
	args := m.Called(ctx, tenant, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.WidgetPayload), args.Error(1)
}

type mockAggregator struct {
	mock.Mock
	reports.Aggregator
}

func (m *mockAggregator) Generate(ctx context.Context, tenant domain.TenantID, rt domain.ReportType, subType string, rng domain.DateRange) (domain.ReportBundle, error) {
	args := m.Called(ctx, tenant, rt, subType, rng)
	return args.Get(0).(domain.ReportBundle), args.Error(1)
}

func (m *mockAggregator) Dashboard(ctx context.Context, tenant domain.TenantID, rng domain.DateRange) (domain.ReportBundle, error) {
	args := m.Called(ctx, tenant, rng)
	return args.Get(0).(domain.ReportBundle), args.Error(1)
}

type mockComposer struct {
	mock.Mock
	executive.Composer
}

func (m *mockComposer) ClientHealth(ctx context.Context, tenant domain.TenantID, clientID int64, asOf time.Time) (domain.ClientHealthScore, error) {
	args := m.Called(ctx, tenant, clientID, asOf)
	return args.Get(0).(domain.ClientHealthScore), args.Error(1)
}

func (m *mockComposer) QuarterlyReview(ctx context.Context, tenant domain.TenantID, year, quarter int) (domain.QuarterlyReview, error) {
	args := m.Called(ctx, tenant, year, quarter)
	return args.Get(0).(domain.QuarterlyReview), args.Error(1)
}

func (m *mockComposer) SLAReport(ctx context.Context, tenant domain.TenantID, rng domain.DateRange) (domain.SLAReport, error) {
	args := m.Called(ctx, tenant, rng)
	return args.Get(0).(domain.SLAReport), args.Error(1)
}

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) Export(ctx context.Context, report domain.Report, format domain.ExportFormat) (domain.ExportedFile, error) {
	args := m.Called(ctx, report, format)
	return args.Get(0).(domain.ExportedFile), args.Error(1)
}

func (m *mockExporter) Render(w io.Writer, report domain.Report, format domain.ExportFormat) error {
	args := m.Called(w, report, format)
	_, _ = io.WriteString(w, "rendered "+report.Title)
	return args.Error(0)
}

type mockScheduler struct {
	mock.Mock
	scheduler.Scheduler
}

func (m *mockScheduler) Create(ctx context.Context, s *domain.ReportSchedule) error {
	args := m.Called(ctx, s)
	s.ID = 11
	return args.Error(0)
}

func (m *mockScheduler) List(ctx context.Context, tenant domain.TenantID) ([]domain.ReportSchedule, error) {
	args := m.Called(ctx, tenant)
	return args.Get(0).([]domain.ReportSchedule), args.Error(1)
}

func (m *mockScheduler) Activate(ctx context.Context, tenant domain.TenantID, id int64, next time.Time) error {
	return m.Called(ctx, tenant, id, next).Error(0)
}

func (m *mockScheduler) Deactivate(ctx context.Context, tenant domain.TenantID, id int64) error {
	return m.Called(ctx, tenant, id).Error(0)
}

func (m *mockScheduler) RunNow(ctx context.Context, tenant domain.TenantID, id int64) (domain.ScheduleResult, error) {
	args := m.Called(ctx, tenant, id)
	return args.Get(0).(domain.ScheduleResult), args.Error(1)
}

type fixture struct {
	engine     *mockEngine
	widgets    *mockWidgets
	aggregator *mockAggregator
	composer   *mockComposer
	exporter   *mockExporter
	scheduler  *mockScheduler
	router     chi.Router
}

var (
	today   = time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC)
	january = domain.MustDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
)

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		engine:     new(mockEngine),
		widgets:    new(mockWidgets),
		aggregator: new(mockAggregator),
		composer:   new(mockComposer),
		exporter:   new(mockExporter),
		scheduler:  new(mockScheduler),
	}
	h := NewHandler(Dependencies{
		Engine:     f.engine,
		Widgets:    f.widgets,
		Aggregator: f.aggregator,
		Composer:   f.composer,
		Exporter:   f.exporter,
		Scheduler:  f.scheduler,
		Now:        func() time.Time { return today },
	})

	r := chi.NewRouter()
	r.Use(middleware.Tenant)
	r.Get("/metrics", h.ListMetrics)
	r.Get("/metrics/{name}", h.GetMetric)
	r.Post("/widgets/render", h.RenderWidget)
	r.Get("/reports/{type}", h.GetReport)
	r.Get("/dashboard", h.GetDashboard)
	r.Get("/executive/clients/{clientID}/health", h.GetClientHealth)
	r.Get("/executive/quarterly-review", h.GetQuarterlyReview)
	r.Get("/executive/sla", h.GetSLAReport)
	r.Get("/schedules", h.ListSchedules)
	r.Post("/schedules", h.CreateSchedule)
	r.Post("/schedules/{scheduleID}/activate", h.ActivateSchedule)
	r.Post("/schedules/{scheduleID}/deactivate", h.DeactivateSchedule)
	r.Post("/schedules/{scheduleID}/run", h.RunSchedule)
	f.router = r

	t.Cleanup(func() {
		f.engine.AssertExpectations(t)
		f.aggregator.AssertExpectations(t)
		f.composer.AssertExpectations(t)
		f.scheduler.AssertExpectations(t)
	})
	return f
}

func (f *fixture) do(method, target string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(middleware.TenantHeader, "7")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGetMetric(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*mockEngine)
		expectedStatus int
		check          func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:   "scalar metric",
			target: "/metrics/total_revenue?start=2024-01-01&end=2024-01-31&client_id=3",
			setupMock: func(m *mockEngine) {
				m.On("Compute", mock.Anything, domain.TenantID(7), "total_revenue", january, domain.Filters{ClientID: 3}).
					Return(metrics.Result{Name: "total_revenue", Kind: metrics.KindScalar, Format: domain.FormatCurrency, Scalar: 10000}, nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var got api.MetricResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				require.NotNil(t, got.Value)
				assert.Equal(t, 10000.0, *got.Value)
				assert.Nil(t, got.Rows)
				assert.Equal(t, 31, got.Period.Duration)
			},
		},
		{
			name:   "default range is the last 30 days",
			target: "/metrics/open_tickets",
			setupMock: func(m *mockEngine) {
				rng := domain.MustDateRange(today.AddDate(0, 0, -29), today)
				m.On("Compute", mock.Anything, domain.TenantID(7), "open_tickets", rng, domain.Filters{}).
					Return(metrics.Result{Name: "open_tickets", Kind: metrics.KindScalar}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "unknown metric",
			target: "/metrics/bogus?start=2024-01-01&end=2024-01-31",
			setupMock: func(m *mockEngine) {
				m.On("Compute", mock.Anything, domain.TenantID(7), "bogus", january, domain.Filters{}).
					Return(metrics.Result{}, domain.ErrUnknownMetric)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "reversed range",
			target:         "/metrics/total_revenue?start=2024-02-01&end=2024-01-01",
			setupMock:      func(*mockEngine) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "data source failure is hidden",
			target: "/metrics/total_revenue?start=2024-01-01&end=2024-01-31",
			setupMock: func(m *mockEngine) {
				m.On("Compute", mock.Anything, domain.TenantID(7), "total_revenue", january, domain.Filters{}).
					Return(metrics.Result{}, &domain.DataSourceError{Metric: "total_revenue", Err: errors.New("connection refused")})
			},
			expectedStatus: http.StatusInternalServerError,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.NotContains(t, rec.Body.String(), "connection refused")
				assert.Contains(t, rec.Body.String(), "internal error")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t)
			tt.setupMock(f.engine)

			rec := f.do(http.MethodGet, tt.target, "")
			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
	}
}

func TestListMetrics(t *testing.T) {
	f := setupFixture(t)
	f.engine.On("Names").Return([]string{"total_revenue", "open_tickets"})
	f.engine.On("Definition", "open_tickets").Return(metrics.Definition{Name: "open_tickets", Group: "tickets"}, nil)
	f.engine.On("Definition", "total_revenue").Return(metrics.Definition{Name: "total_revenue", Group: "financial", Format: domain.FormatCurrency}, nil)

	rec := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []api.MetricDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "open_tickets", got[0].Name)
	assert.Equal(t, "scalar", got[1].Kind)
}

func TestRenderWidget(t *testing.T) {
	t.Run("kpi", func(t *testing.T) {
		f := setupFixture(t)
		f.widgets.On("Render", mock.Anything, domain.TenantID(7), mock.MatchedBy(func(cfg domain.WidgetConfig) bool {
			kpi, ok := cfg.(domain.KPIConfig)
			return ok && kpi.Metric == "total_revenue" && kpi.Range == january
		})).Return(domain.KPIPayload{Title: "Revenue", Value: 10000}, nil)

		body := `{"kind":"kpi","config":{"title":"Revenue","range":{"start":"2024-01-01","end":"2024-01-31"},"metric":"total_revenue","good_direction":"up"}}`
		rec := f.do(http.MethodPost, "/widgets/render", body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"kind":"kpi"`)
		assert.Contains(t, rec.Body.String(), `"value":10000`)
	})

	t.Run("unknown kind", func(t *testing.T) {
		f := setupFixture(t)
		rec := f.do(http.MethodPost, "/widgets/render", `{"kind":"sparkline","config":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.widgets.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := setupFixture(t)
		rec := f.do(http.MethodPost, "/widgets/render", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetReport(t *testing.T) {
	bundle := domain.ReportBundle{Name: "financial", Title: "Financial Report: Revenue", TenantID: 7, Period: january, PreviousPeriod: january.Previous()}

	t.Run("json", func(t *testing.T) {
		f := setupFixture(t)
		f.aggregator.On("Generate", mock.Anything, domain.TenantID(7), domain.ReportFinancial, "revenue", january).Return(bundle, nil)

		rec := f.do(http.MethodGet, "/reports/financial?sub_type=revenue&start=2024-01-01&end=2024-01-31", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got domain.ReportBundle
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "Financial Report: Revenue", got.Title)
	})

	t.Run("rendered csv", func(t *testing.T) {
		f := setupFixture(t)
		f.aggregator.On("Generate", mock.Anything, domain.TenantID(7), domain.ReportFinancial, "", january).Return(bundle, nil)
		f.exporter.On("Render", mock.Anything, mock.Anything, domain.ExportCSV).Return(nil)

		rec := f.do(http.MethodGet, "/reports/financial?start=2024-01-01&end=2024-01-31&format=csv", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "financial-report-revenue.csv")
		assert.Equal(t, "rendered Financial Report: Revenue", rec.Body.String())
	})

	t.Run("unknown report type", func(t *testing.T) {
		f := setupFixture(t)
		rec := f.do(http.MethodGet, "/reports/payroll", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown format", func(t *testing.T) {
		f := setupFixture(t)
		f.aggregator.On("Dashboard", mock.Anything, domain.TenantID(7), january).Return(bundle, nil)
		rec := f.do(http.MethodGet, "/dashboard?start=2024-01-01&end=2024-01-31&format=docx", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExecutiveEndpoints(t *testing.T) {
	t.Run("client health not found", func(t *testing.T) {
		f := setupFixture(t)
		f.composer.On("ClientHealth", mock.Anything, domain.TenantID(7), int64(99), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)).
			Return(domain.ClientHealthScore{}, domain.ErrNotFound)

		rec := f.do(http.MethodGet, "/executive/clients/99/health?as_of=2024-01-31", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("quarterly review defaults to the previous quarter", func(t *testing.T) {
		f := setupFixture(t)
		f.composer.On("QuarterlyReview", mock.Anything, domain.TenantID(7), 2023, 4).
			Return(domain.QuarterlyReview{Year: 2023, Quarter: 4, Grade: "B"}, nil)

		rec := f.do(http.MethodGet, "/executive/quarterly-review", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"grade":"B"`)
	})

	t.Run("quarterly review bad quarter", func(t *testing.T) {
		f := setupFixture(t)
		rec := f.do(http.MethodGet, "/executive/quarterly-review?quarter=first", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("sla", func(t *testing.T) {
		f := setupFixture(t)
		f.composer.On("SLAReport", mock.Anything, domain.TenantID(7), january).
			Return(domain.SLAReport{TenantID: 7, Period: january, Overall: domain.SLACompliance{OverallCompliance: 100}}, nil)

		rec := f.do(http.MethodGet, "/executive/sla?start=2024-01-01&end=2024-01-31", "")
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestScheduleEndpoints(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		f := setupFixture(t)
		f.scheduler.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.ReportSchedule) bool {
			return s.TenantID == 7 && s.ReportType == domain.ReportSLA && s.Frequency == domain.FrequencyWeekly && s.IsActive
		})).Return(nil)

		body, err := json.Marshal(api.ScheduleRequest{
			Name:       "weekly sla",
			ReportType: "sla",
			Frequency:  "weekly",
			Format:     "pdf",
			Recipients: []domain.Recipient{{Channel: domain.ChannelEmail, Address: "ops@example.com"}},
		})
		require.NoError(t, err)

		rec := f.do(http.MethodPost, "/schedules", string(body))
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":11`)
	})

	t.Run("create rejects unknown frequency", func(t *testing.T) {
		f := setupFixture(t)
		rec := f.do(http.MethodPost, "/schedules", `{"name":"x","report_type":"sla","frequency":"hourly","format":"pdf"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list is never null", func(t *testing.T) {
		f := setupFixture(t)
		f.scheduler.On("List", mock.Anything, domain.TenantID(7)).Return([]domain.ReportSchedule(nil), nil)

		rec := f.do(http.MethodGet, "/schedules", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"schedules":[]}`, rec.Body.String())
	})

	t.Run("activate with and without body", func(t *testing.T) {
		f := setupFixture(t)
		next := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
		f.scheduler.On("Activate", mock.Anything, domain.TenantID(7), int64(5), next).Return(nil)
		f.scheduler.On("Activate", mock.Anything, domain.TenantID(7), int64(6), time.Time{}).Return(nil)

		rec := f.do(http.MethodPost, "/schedules/5/activate", `{"next_run_at":"2024-03-01T06:00:00Z"}`)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = f.do(http.MethodPost, "/schedules/6/activate", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("deactivate missing schedule", func(t *testing.T) {
		f := setupFixture(t)
		f.scheduler.On("Deactivate", mock.Anything, domain.TenantID(7), int64(5)).Return(domain.ErrNotFound)

		rec := f.do(http.MethodPost, "/schedules/5/deactivate", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = f.do(http.MethodPost, "/schedules/abc/deactivate", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("run now delivery failure", func(t *testing.T) {
		f := setupFixture(t)
		f.scheduler.On("RunNow", mock.Anything, domain.TenantID(7), int64(5)).
			Return(domain.ScheduleResult{}, &domain.DeliveryError{ScheduleID: 5, Result: domain.NewDeliveryResult(0, []domain.RecipientError{{Error: "bounced"}})})

		rec := f.do(http.MethodPost, "/schedules/5/run", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestTenantIsRequired(t *testing.T) {
	f := setupFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/schedules", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
