package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/de-tools/msp-atlas/pkg/adapters"
	"github.com/de-tools/msp-atlas/pkg/models/api"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.scheduler.List(r.Context(), tenant(r))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if schedules == nil {
		schedules = []domain.ReportSchedule{}
	}
	writeJSON(w, r, http.StatusOK, api.ScheduleList{Schedules: schedules})
}

func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req api.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err), nil)
		return
	}
	sched, err := adapters.MapScheduleRequestToDomain(tenant(r), req)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	if err := h.scheduler.Create(r.Context(), &sched); err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusCreated, sched)
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "scheduleID")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	sched, err := h.scheduler.Get(r.Context(), tenant(r), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, sched)
}

func (h *Handler) DeactivateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "scheduleID")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if err := h.scheduler.Deactivate(r.Context(), tenant(r), id); err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ActivateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "scheduleID")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	var req api.ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err), nil)
		return
	}
	var next time.Time
	if req.NextRunAt != nil {
		next = req.NextRunAt.UTC()
	}

	if err := h.scheduler.Activate(r.Context(), tenant(r), id, next); err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RunSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "scheduleID")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	res, err := h.scheduler.RunNow(r.Context(), tenant(r), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "scheduleID")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}

	runs, err := h.scheduler.Runs(r.Context(), tenant(r), id, limit)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	writeJSON(w, r, http.StatusOK, api.RunList{Runs: runs})
}
