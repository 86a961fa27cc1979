package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/platform/httpx"
	"github.com/cafeluna/api/internal/platform/pagination"
	"github.com/cafeluna/api/internal/services"
)

// MenuHandlers serves the public beverage and add-on menu. No authentication
// is required; only available items are listed.
type MenuHandlers struct {
	catalog services.CatalogService
}

// NewMenuHandlers constructs the public menu handlers.
func NewMenuHandlers(catalog services.CatalogService) *MenuHandlers {
	return &MenuHandlers{catalog: catalog}
}

// Routes wires the /menu endpoints onto the provided router.
func (h *MenuHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/beverages", h.listBeverages)
	r.Get("/beverages/{beverageID}", h.getBeverage)
	r.Get("/add-ons", h.listAddOns)
}

func (h *MenuHandlers) listBeverages(w http.ResponseWriter, r *http.Request) {
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

	filter := services.BeverageListFilter{
		OnlyAvailable: true,
		Pagination: services.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind := domain.BeverageKind(raw)
		filter.Kind = &kind
	}

	page, err := h.catalog.ListBeverages(ctx, filter)
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

func (h *MenuHandlers) getBeverage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	beverageID := strings.TrimSpace(chi.URLParam(r, "beverageID"))
	beverage, err := h.catalog.GetBeverage(ctx, beverageID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, beverageResponse{Beverage: buildBeveragePayload(beverage)})
}

func (h *MenuHandlers) listAddOns(w http.ResponseWriter, r *http.Request) {
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

	filter := services.AddOnListFilter{
		OnlyAvailable: true,
		Pagination: services.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		filter.Category = &raw
	}

	page, err := h.catalog.ListAddOns(ctx, filter)
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

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_item_not_found", "catalog item not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "catalog operation failed", http.StatusInternalServerError))
	}
}

type beverageListResponse struct {
	Beverages     []beveragePayload `json:"beverages"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type beverageResponse struct {
	Beverage beveragePayload `json:"beverage"`
}

type beveragePayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	BasePrice   int64  `json:"base_price"`
	Available   bool   `json:"available"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type addOnListResponse struct {
	AddOns        []addOnPayload `json:"add_ons"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type addOnPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	Surcharge int64  `json:"surcharge"`
	Available bool   `json:"available"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func buildBeveragePayload(beverage services.Beverage) beveragePayload {
	return beveragePayload{
		ID:          beverage.ID,
		Name:        beverage.Name,
		Kind:        string(beverage.Kind),
		Description: beverage.Description,
		BasePrice:   beverage.BasePrice,
		Available:   beverage.Available,
		CreatedAt:   formatTime(beverage.CreatedAt),
		UpdatedAt:   formatTime(beverage.UpdatedAt),
	}
}

func buildAddOnPayload(addOn services.AddOn) addOnPayload {
	return addOnPayload{
		ID:        addOn.ID,
		Name:      addOn.Name,
		Category:  addOn.Category,
		Surcharge: addOn.Surcharge,
		Available: addOn.Available,
		CreatedAt: formatTime(addOn.CreatedAt),
		UpdatedAt: formatTime(addOn.UpdatedAt),
	}
}
