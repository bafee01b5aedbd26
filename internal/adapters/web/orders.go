package web

import (
	"net/http"
	"time"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/app"
	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/core"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var status *core.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := core.OrderStatus(s)
		switch st {
		case core.OrderPending, core.OrderInProduction, core.OrderCompleted, core.OrderCancelled:
			status = &st
		default:
			writeError(w, r, "invalid status filter", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}
	}
	orders, err := h.svc.ListOrders(r.Context(), status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"orders": orders})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, order)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Actor == "" {
		req.Actor = actorFrom(r)
	}
	order, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, order)
}

// updateOrder changes priority and/or details of an active order.
func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Priority *core.OrderPriority `json:"priority"`
		DueDate  *time.Time          `json:"due_date"`
		Notes    *string             `json:"notes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	orderID := urlParam(r, "id")
	var order *core.ProductionOrder
	var err error
	if req.Priority != nil {
		order, err = h.svc.UpdateOrderPriority(r.Context(), orderID, *req.Priority)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	if req.DueDate != nil || req.Notes != nil {
		current, gerr := h.svc.GetOrder(r.Context(), orderID)
		if gerr != nil {
			writeServiceError(w, r, gerr)
			return
		}
		dueDate := current.DueDate
		if req.DueDate != nil {
			dueDate = req.DueDate
		}
		notes := current.Notes
		if req.Notes != nil {
			notes = *req.Notes
		}
		order, err = h.svc.UpdateOrderDetails(r.Context(), orderID, dueDate, notes)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	if order == nil {
		writeError(w, r, "nothing to update", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}
	writeJSON(w, order)
}

func (h *Handler) startProduction(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.StartProduction(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, order)
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.CompleteOrder(r.Context(), urlParam(r, "id"), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, order)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.CancelOrder(r.Context(), urlParam(r, "id"), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, order)
}

func (h *Handler) allocateOpenOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.AllocateOpenOrders(r.Context(), actorFrom(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
