package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/app"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc app.ApplicationService
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// Catalog
		r.Get("/api/parts", h.listParts)
		r.Post("/api/parts", h.createPart)
		r.Put("/api/parts/{id}", h.updatePart)
		r.Delete("/api/parts/{id}", h.deletePart)
		r.Get("/api/products", h.listProducts)
		r.Post("/api/products", h.createProduct)
		r.Put("/api/products/{id}", h.updateProduct)
		r.Get("/api/products/{id}/parts", h.productParts)
		r.Get("/api/printers", h.listPrinters)
		r.Post("/api/printers", h.createPrinter)
		r.Patch("/api/printers/{id}/status", h.updatePrinterStatus)

		// Inventory ledger
		r.Get("/api/inventory", h.stockLevels)
		r.Get("/api/inventory/low-stock", h.lowStock)
		r.Post("/api/inventory/adjust", h.adjustInventory)
		r.Get("/api/inventory/adjustments", h.adjustments)

		// Production orders
		r.Get("/api/orders", h.listOrders)
		r.Post("/api/orders", h.createOrder)
		r.Get("/api/orders/{id}", h.getOrder)
		r.Patch("/api/orders/{id}", h.updateOrder)
		r.Post("/api/orders/{id}/start", h.startProduction)
		r.Post("/api/orders/{id}/complete", h.completeOrder)
		r.Post("/api/orders/{id}/cancel", h.cancelOrder)
		r.Post("/api/orders/allocate", h.allocateOpenOrders)

		// Print log
		r.Get("/api/prints", h.printLog)
		r.Post("/api/prints", h.logPrint)

		// Demand and schedule
		r.Get("/api/demand", h.demand)
		r.Get("/api/schedule", h.schedule)

		// Reporting
		r.Get("/api/reports/yields", h.partYields)
		r.Get("/api/reports/stats", h.dashboardStats)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// actorFrom identifies who performed a mutation, for the audit trail.
// Falls back to "web" when the client does not say.
func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "web"
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, r, "invalid request body: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
