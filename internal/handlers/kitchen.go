package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cafeluna/api/internal/platform/auth"
	"github.com/cafeluna/api/internal/platform/httpx"
	"github.com/cafeluna/api/internal/platform/pagination"
	"github.com/cafeluna/api/internal/services"
)

// KitchenHandlers serves the staff-facing preparation queue.
type KitchenHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewKitchenHandlers constructs kitchen handlers.
func NewKitchenHandlers(authn *auth.Authenticator, orders services.OrderService) *KitchenHandlers {
	return &KitchenHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the /kitchen endpoints onto the provided router.
func (h *KitchenHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleStaff))
	}
	r.Get("/queue", h.queue)
}

// queue lists open orders oldest first so the kitchen works in arrival order.
func (h *KitchenHandlers) queue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: 50, MaxPageSize: 100})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.KitchenQueue(ctx, services.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to load kitchen queue", http.StatusInternalServerError))
		return
	}

	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Orders:        items,
		NextPageToken: page.NextPageToken,
	})
}
