package reports

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/de-tools/msp-atlas/pkg/adapters"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

func (h *Handler) GetClientHealth(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "clientID")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	score, err := h.composer.ClientHealth(r.Context(), tenant(r), id, asOf)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, score)
}

func (h *Handler) GetHealthScorecard(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	card, err := h.composer.HealthScorecard(r.Context(), tenant(r), asOf)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	h.writeReport(w, r, card, func() domain.Report { return adapters.MapScorecardToReport(card) })
}

// GetQuarterlyReview defaults to the quarter before the current one.
func (h *Handler) GetQuarterlyReview(w http.ResponseWriter, r *http.Request) {
	year, quarter := domain.QuarterOf(h.now().UTC())
	quarter--
	if quarter == 0 {
		year, quarter = year-1, 4
	}

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: bad year %q", domain.ErrInvalidRange, v), nil)
			return
		}
		year = y
	}
	if v := q.Get("quarter"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: bad quarter %q", domain.ErrInvalidRange, v), nil)
			return
		}
		quarter = n
	}

	qbr, err := h.composer.QuarterlyReview(r.Context(), tenant(r), year, quarter)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	h.writeReport(w, r, qbr, func() domain.Report { return adapters.MapQuarterlyReviewToReport(qbr) })
}

func (h *Handler) GetSLAReport(w http.ResponseWriter, r *http.Request) {
	rng, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	sla, err := h.composer.SLAReport(r.Context(), tenant(r), rng)
	if err != nil {
		writeError(w, r, err, &rng)
		return
	}
	h.writeReport(w, r, sla, func() domain.Report { return adapters.MapSLAReportToReport(sla) })
}

func (h *Handler) GetExecutiveSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	summary, err := h.composer.ExecutiveSummary(r.Context(), tenant(r), rng)
	if err != nil {
		writeError(w, r, err, &rng)
		return
	}
	h.writeReport(w, r, summary, func() domain.Report { return adapters.MapExecutiveSummaryToReport(summary) })
}
