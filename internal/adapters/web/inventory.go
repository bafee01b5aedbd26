package web

import (
	"net/http"
	"strconv"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/app"
)

func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.GetStockLevels(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"stock": levels})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.GetLowStockParts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"stock": levels})
}

func (h *Handler) adjustInventory(w http.ResponseWriter, r *http.Request) {
	var req app.AdjustInventoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Actor == "" {
		req.Actor = actorFrom(r)
	}
	result, err := h.svc.AdjustInventory(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) adjustments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	adjustments, err := h.svc.GetAdjustments(r.Context(), r.URL.Query().Get("part_id"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"adjustments": adjustments})
}
