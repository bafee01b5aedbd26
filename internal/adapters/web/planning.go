package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/app"
)

func (h *Handler) logPrint(w http.ResponseWriter, r *http.Request) {
	var req app.LogPrintRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Actor == "" {
		req.Actor = actorFrom(r)
	}
	entry, err := h.svc.LogPrint(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, entry)
}

func (h *Handler) printLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.svc.GetPrintLog(r.Context(), r.URL.Query().Get("part_id"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"prints": entries})
}

func (h *Handler) demand(w http.ResponseWriter, r *http.Request) {
	demands, err := h.svc.GetDemand(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"demand": demands})
}

// schedule recomputes the production plan. An optional start=YYYY-MM-DD
// query parameter sets the first scheduling day; default is today.
func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s := r.URL.Query().Get("start"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, r, "invalid start date, expected YYYY-MM-DD", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}
		start = parsed
	}
	result, err := h.svc.GetSchedule(r.Context(), start)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) partYields(w http.ResponseWriter, r *http.Request) {
	// Default reporting window is the trailing 30 days.
	since := time.Now().AddDate(0, 0, -30)
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, r, "invalid since date, expected YYYY-MM-DD", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}
		since = parsed
	}
	yields, err := h.svc.GetPartYields(r.Context(), since)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"yields": yields})
}

func (h *Handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetDashboardStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, stats)
}
