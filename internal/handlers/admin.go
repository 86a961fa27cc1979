package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cafeluna/api/internal/platform/auth"
	"github.com/cafeluna/api/internal/platform/httpx"
	"github.com/cafeluna/api/internal/platform/pagination"
	"github.com/cafeluna/api/internal/services"
)

// AdminHandlers exposes staff-only catalogue management and the dashboard
// stats endpoint.
type AdminHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
	stats   services.StatsService
}

// NewAdminHandlers constructs admin handlers.
func NewAdminHandlers(authn *auth.Authenticator, catalog services.CatalogService, stats services.StatsService) *AdminHandlers {
	return &AdminHandlers{
		authn:   authn,
		catalog: catalog,
		stats:   stats,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleStaff))
	}
	r.Get("/stats", h.getStats)
	r.Get("/beverages", h.listBeverages)
	r.Post("/beverages", h.createBeverage)
	r.Put("/beverages/{beverageID}", h.updateBeverage)
	r.Delete("/beverages/{beverageID}", h.deleteBeverage)
	r.Get("/add-ons", h.listAddOns)
	r.Post("/add-ons", h.createAddOn)
	r.Put("/add-ons/{addOnID}", h.updateAddOn)
	r.Delete("/add-ons/{addOnID}", h.deleteAddOn)
}

func (h *AdminHandlers) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stats == nil {
		httpx.WriteError(ctx, w, httpx.NewError("stats_service_unavailable", "stats service is unavailable", http.StatusServiceUnavailable))
		return
	}

	report, err := h.stats.Report(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("stats_error", "failed to build stats report", http.StatusInternalServerError))
		return
	}

	byStatus := make(map[string]int, len(report.OrdersByStatus))
	for status, count := range report.OrdersByStatus {
		byStatus[string(status)] = count
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"orders_today":     report.OrdersToday,
		"orders_by_status": byStatus,
		"gross_revenue":    report.GrossRevenue,
		"generated_at":     formatTime(report.GeneratedAt),
	})
}

func (h *AdminHandlers) listBeverages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: 50, MaxPageSize: 100})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	// Staff see unavailable items too.
	page, err := h.catalog.ListBeverages(ctx, services.BeverageListFilter{
		Pagination: services.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]beveragePayload, 0, len(page.Items))
	for _, beverage := range page.Items {
		items = append(items, buildBeveragePayload(beverage))
	}
	writeJSONResponse(w, http.StatusOK, beverageListResponse{
		Beverages:     items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminHandlers) createBeverage(w http.ResponseWriter, r *http.Request) {
	h.upsertBeverage(w, r, nil)
}

func (h *AdminHandlers) updateBeverage(w http.ResponseWriter, r *http.Request) {
	beverageID := strings.TrimSpace(chi.URLParam(r, "beverageID"))
	h.upsertBeverage(w, r, &beverageID)
}

func (h *AdminHandlers) upsertBeverage(w http.ResponseWriter, r *http.Request, beverageID *string) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req upsertBeverageRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	beverage, err := h.catalog.UpsertBeverage(ctx, services.UpsertBeverageCommand{
		BeverageID:  beverageID,
		Name:        req.Name,
		Kind:        req.Kind,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		Available:   req.Available,
		ActorID:     identity.UID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if beverageID == nil {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, beverageResponse{Beverage: buildBeveragePayload(beverage)})
}

func (h *AdminHandlers) deleteBeverage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.catalog.DeleteBeverage(ctx, strings.TrimSpace(chi.URLParam(r, "beverageID"))); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) listAddOns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: 50, MaxPageSize: 100})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.catalog.ListAddOns(ctx, services.AddOnListFilter{
		Pagination: services.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]addOnPayload, 0, len(page.Items))
	for _, addOn := range page.Items {
		items = append(items, buildAddOnPayload(addOn))
	}
	writeJSONResponse(w, http.StatusOK, addOnListResponse{
		AddOns:        items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminHandlers) createAddOn(w http.ResponseWriter, r *http.Request) {
	h.upsertAddOn(w, r, nil)
}

func (h *AdminHandlers) updateAddOn(w http.ResponseWriter, r *http.Request) {
	addOnID := strings.TrimSpace(chi.URLParam(r, "addOnID"))
	h.upsertAddOn(w, r, &addOnID)
}

func (h *AdminHandlers) upsertAddOn(w http.ResponseWriter, r *http.Request, addOnID *string) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req upsertAddOnRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	addOn, err := h.catalog.UpsertAddOn(ctx, services.UpsertAddOnCommand{
		AddOnID:   addOnID,
		Name:      req.Name,
		Category:  req.Category,
		Surcharge: req.Surcharge,
		Available: req.Available,
		ActorID:   identity.UID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if addOnID == nil {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, map[string]addOnPayload{"add_on": buildAddOnPayload(addOn)})
}

func (h *AdminHandlers) deleteAddOn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.catalog.DeleteAddOn(ctx, strings.TrimSpace(chi.URLParam(r, "addOnID"))); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertBeverageRequest struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	BasePrice   int64  `json:"base_price"`
	Available   bool   `json:"available"`
}

type upsertAddOnRequest struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Surcharge int64  `json:"surcharge"`
	Available bool   `json:"available"`
}
