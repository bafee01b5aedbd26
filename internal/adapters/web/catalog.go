package web

import (
	"net/http"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/app"
	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/core"
)

func (h *Handler) listParts(w http.ResponseWriter, r *http.Request) {
	parts, err := h.svc.ListParts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"parts": parts})
}

func (h *Handler) createPart(w http.ResponseWriter, r *http.Request) {
	var req app.PartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	part, err := h.svc.CreatePart(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, part)
}

func (h *Handler) updatePart(w http.ResponseWriter, r *http.Request) {
	var req app.PartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	part, err := h.svc.UpdatePart(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, part)
}

func (h *Handler) deletePart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePart(r.Context(), urlParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"products": products})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req app.ProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	product, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req app.ProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	product, err := h.svc.UpdateProduct(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

func (h *Handler) productParts(w http.ResponseWriter, r *http.Request) {
	parts, err := h.svc.GetProductParts(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"parts": parts})
}

func (h *Handler) listPrinters(w http.ResponseWriter, r *http.Request) {
	printers, err := h.svc.ListPrinters(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"printers": printers})
}

func (h *Handler) createPrinter(w http.ResponseWriter, r *http.Request) {
	var req app.PrinterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	printer, err := h.svc.CreatePrinter(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, printer)
}

func (h *Handler) updatePrinterStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status core.PrinterStatus `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	printer, err := h.svc.UpdatePrinterStatus(r.Context(), urlParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, printer)
}
