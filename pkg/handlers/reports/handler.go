package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/api"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/server/middleware"
	"github.com/de-tools/msp-atlas/pkg/services/executive"
	"github.com/de-tools/msp-atlas/pkg/services/export"
	"github.com/de-tools/msp-atlas/pkg/services/metrics"
	"github.com/de-tools/msp-atlas/pkg/services/reports"
	"github.com/de-tools/msp-atlas/pkg/services/scheduler"
	"github.com/de-tools/msp-atlas/pkg/services/widgets"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const defaultWindowDays = 30

type Dependencies struct {
	Engine     metrics.Engine
	Widgets    widgets.Renderer
	Aggregator reports.Aggregator
	Composer   executive.Composer
	Exporter   export.Exporter
	Scheduler  scheduler.Scheduler
	Now        func() time.Time
}

type Handler struct {
	engine     metrics.Engine
	widgets    widgets.Renderer
	aggregator reports.Aggregator
	composer   executive.Composer
	exporter   export.Exporter
	scheduler  scheduler.Scheduler
	now        func() time.Time
}

func NewHandler(deps Dependencies) *Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{
		engine:     deps.Engine,
		widgets:    deps.Widgets,
		aggregator: deps.Aggregator,
		composer:   deps.Composer,
		exporter:   deps.Exporter,
		scheduler:  deps.Scheduler,
		now:        deps.Now,
	}
}

// tenant is set by middleware.Tenant; handlers are never mounted without it.
func tenant(r *http.Request) domain.TenantID {
	t, _ := middleware.TenantFromContext(r.Context())
	return t
}

// dateRange reads start/end query parameters. Without both it covers the
// last 30 days up to today.
func (h *Handler) dateRange(r *http.Request) (domain.DateRange, error) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if start == "" && end == "" {
		today := h.now().UTC()
		return domain.NewDateRange(today.AddDate(0, 0, -(defaultWindowDays - 1)), today)
	}
	return domain.ParseDateRange(start, end)
}

func (h *Handler) asOf(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return h.now().UTC(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad as_of %q", domain.ErrInvalidRange, v)
	}
	return t, nil
}

func filters(r *http.Request) domain.Filters {
	q := r.URL.Query()
	f := domain.Filters{Priority: q.Get("priority"), Status: q.Get("status")}
	f.ClientID, _ = strconv.ParseInt(q.Get("client_id"), 10, 64)
	f.AssignedTo, _ = strconv.ParseInt(q.Get("assigned_to"), 10, 64)
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	return f
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad %s", domain.ErrNotFound, name)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func statusFor(err error) int {
	var deliveryErr *domain.DeliveryError
	switch {
	case errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidWidgetConfig),
		errors.Is(err, domain.ErrUnknownMetric),
		errors.Is(err, domain.ErrUnknownReportType),
		errors.Is(err, domain.ErrUnknownExportFormat),
		errors.Is(err, domain.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrScheduleClaimed):
		return http.StatusConflict
	case errors.As(err, &deliveryErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status. Server errors are logged with
// the request context and hidden from the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error, rng *domain.DateRange) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		event := zerolog.Ctx(r.Context()).Error().Err(err)
		if rng != nil {
			event = event.Str("range", rng.String())
		}
		event.Msg("request failed")
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, r, status, api.ErrorResponse{Error: msg})
}

// writeReport answers with JSON of v, or with the rendered report when a
// format query parameter is given.
func (h *Handler) writeReport(w http.ResponseWriter, r *http.Request, v any, toReport func() domain.Report) {
	format := r.URL.Query().Get("format")
	if format == "" {
		writeJSON(w, r, http.StatusOK, v)
		return
	}

	f, err := domain.ParseExportFormat(format)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	renderer := export.Renderers()[f]
	report := toReport()

	w.Header().Set("Content-Type", renderer.MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.%s"`, export.Slug(report.Title), renderer.Extension()))
	if err := h.exporter.Render(w, report, f); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("format", format).Msg("failed to render report")
	}
}
