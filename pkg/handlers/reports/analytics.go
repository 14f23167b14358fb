package reports

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/de-tools/msp-atlas/pkg/adapters"
	"github.com/de-tools/msp-atlas/pkg/models/api"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	names := h.engine.Names()
	slices.Sort(names)

	response := make([]api.MetricDefinition, 0, len(names))
	for _, name := range names {
		def, err := h.engine.Definition(name)
		if err != nil {
			continue
		}
		response = append(response, adapters.MapMetricDefinitionToAPI(def))
	}
	writeJSON(w, r, http.StatusOK, response)
}

func (h *Handler) GetMetric(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rng, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	res, err := h.engine.Compute(ctx, tenant(r), chi.URLParam(r, "name"), rng, filters(r))
	if err != nil {
		writeError(w, r, err, &rng)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapMetricResultToAPI(res, rng))
}

func (h *Handler) RenderWidget(w http.ResponseWriter, r *http.Request) {
	var req api.WidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidWidgetConfig, err), nil)
		return
	}
	cfg, err := adapters.MapWidgetRequestToConfig(req)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	payload, err := h.widgets.Render(r.Context(), tenant(r), cfg)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, api.WidgetResponse{Kind: cfg.Kind(), Payload: payload})
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rt, err := domain.ParseReportType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	rng, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	bundle, err := h.aggregator.Generate(r.Context(), tenant(r), rt, r.URL.Query().Get("sub_type"), rng)
	if err != nil {
		writeError(w, r, err, &rng)
		return
	}
	h.writeReport(w, r, bundle, func() domain.Report { return adapters.MapBundleToReport(bundle) })
}

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	rng, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	bundle, err := h.aggregator.Dashboard(r.Context(), tenant(r), rng)
	if err != nil {
		writeError(w, r, err, &rng)
		return
	}
	h.writeReport(w, r, bundle, func() domain.Report { return adapters.MapBundleToReport(bundle) })
}
