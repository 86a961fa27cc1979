package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/platform/auth"
	"github.com/cafeluna/api/internal/platform/httpx"
	"github.com/cafeluna/api/internal/platform/pagination"
	"github.com/cafeluna/api/internal/platform/textutil"
	"github.com/cafeluna/api/internal/services"
)

var orderListFilterFields = map[string][]pagination.Operator{
	"status":    {pagination.OperatorEqual},
	"createdAt": {pagination.OperatorGreaterEqual, pagination.OperatorLessEqual},
}

// OrderHandlers exposes order lifecycle endpoints. Customers create, list,
// read, and cancel their own orders; status transitions are staff only.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	createGuard func(http.Handler) http.Handler
}

// OrderOption customises order handler construction.
type OrderOption func(*OrderHandlers)

// WithCreateGuard wraps order creation with the given middleware, typically an
// idempotency-key check.
func WithCreateGuard(mw func(http.Handler) http.Handler) OrderOption {
	return func(h *OrderHandlers) {
		h.createGuard = mw
	}
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	if h.createGuard != nil {
		r.With(h.createGuard).Post("/", h.createOrder)
	} else {
		r.Post("/", h.createOrder)
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)

	if h.authn != nil {
		r.Group(func(staff chi.Router) {
			staff.Use(h.authn.RequireAuth(auth.RoleStaff))
			staff.Post("/{orderID}:advance", h.advanceOrder)
			staff.Post("/{orderID}:status", h.setOrderStatus)
		})
	} else {
		r.Post("/{orderID}:advance", h.advanceOrder)
		r.Post("/{orderID}:status", h.setOrderStatus)
	}
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.CreateFromCart(ctx, services.CreateOrderFromCartCommand{
		UserID:        identity.UID,
		PaymentMethod: req.PaymentMethod,
		Metadata:      textutil.NormalizeStringMap(req.Metadata),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize:     20,
		MaxPageSize:         100,
		AllowedOrderFields:  []string{"createdAt"},
		AllowedFilterFields: orderListFilterFields,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		SortOrder: domain.SortDesc,
		Pagination: services.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}
	// Customers only see their own orders; staff see the whole book.
	if !identity.IsStaff() {
		filter.UserID = identity.UID
	}

	for _, order := range params.Orders {
		if order.Field == "createdAt" && !order.Desc {
			filter.SortOrder = domain.SortAsc
		}
	}

	for _, f := range params.Filters {
		switch f.Field {
		case "status":
			filter.Status = append(filter.Status, f.Value)
		case "createdAt":
			ts, parseErr := time.Parse(time.RFC3339, f.Value)
			if parseErr != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "createdAt filter must be RFC3339", http.StatusBadRequest))
				return
			}
			if f.Op == pagination.OperatorGreaterEqual {
				filter.DateRange.From = &ts
			} else {
				filter.DateRange.To = &ts
			}
		}
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		h.writeOrderError(ctx, w, err)
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

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetOrder(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	if !h.canAccessOrder(identity, order) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "order belongs to another customer", http.StatusForbidden))
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	if !h.canAccessOrder(identity, order) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "order belongs to another customer", http.StatusForbidden))
		return
	}

	var req transitionRequest
	if body, bodyErr := readLimitedBody(r, maxBodySize); bodyErr == nil {
		if decodeErr := decodeTransitionRequest(body, &req); decodeErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", decodeErr.Error(), http.StatusBadRequest))
			return
		}
	}

	result, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		ActorID: identity.UID,
		Reason:  req.Reason,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	// A refused cancellation is a normal response, not an error.
	writeJSONResponse(w, http.StatusOK, cancelResponse{
		Order:     buildOrderPayload(result.Order),
		Cancelled: result.Cancelled,
		Reason:    result.Reason,
	})
}

func (h *OrderHandlers) advanceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req transitionRequest
	if body, bodyErr := readLimitedBody(r, maxBodySize); bodyErr == nil {
		if decodeErr := decodeTransitionRequest(body, &req); decodeErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", decodeErr.Error(), http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.AdvanceStatus(ctx, services.AdvanceStatusCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		ActorID: identity.UID,
		Note:    req.Note,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req transitionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.SetStatus(ctx, services.SetStatusCommand{
		OrderID:      strings.TrimSpace(chi.URLParam(r, "orderID")),
		TargetStatus: req.Status,
		ActorID:      identity.UID,
		Note:         req.Note,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) canAccessOrder(identity *auth.Identity, order services.Order) bool {
	if identity.IsStaff() {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(order.UserID), strings.TrimSpace(identity.UID))
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPaymentMethod):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payment_method", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", "cart has no items", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, domain.ErrInvalidStatus):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, domain.ErrTerminalStatus):
		httpx.WriteError(ctx, w, httpx.NewError("order_terminal_state", err.Error(), http.StatusConflict))
	case errors.Is(err, domain.ErrIllegalTransition):
		httpx.WriteError(ctx, w, httpx.NewError("order_illegal_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently; retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order operation failed", http.StatusInternalServerError))
	}
}

type createOrderRequest struct {
	PaymentMethod string            `json:"payment_method"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type transitionRequest struct {
	Status string `json:"status,omitempty"`
	Note   string `json:"note,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type cancelResponse struct {
	Order     orderPayload `json:"order"`
	Cancelled bool         `json:"cancelled"`
	Reason    string       `json:"reason,omitempty"`
}

type orderPayload struct {
	ID            string               `json:"id"`
	OrderNumber   string               `json:"order_number"`
	UserID        string               `json:"user_id"`
	Status        string               `json:"status"`
	PaymentMethod string               `json:"payment_method"`
	Currency      string               `json:"currency"`
	Subtotal      int64                `json:"subtotal"`
	Discount      int64                `json:"discount"`
	Total         int64                `json:"total"`
	Items         []orderItemPayload   `json:"items"`
	Note          string               `json:"note,omitempty"`
	History       []statusEntryPayload `json:"history,omitempty"`
	CreatedAt     string               `json:"created_at"`
	UpdatedAt     string               `json:"updated_at"`
	DeliveredAt   string               `json:"delivered_at,omitempty"`
	CancelledAt   string               `json:"cancelled_at,omitempty"`
}

type orderItemPayload struct {
	BeverageID   string   `json:"beverage_id"`
	BeverageName string   `json:"beverage_name"`
	AddOnNames   []string `json:"add_on_names,omitempty"`
	Quantity     int      `json:"quantity"`
	UnitPrice    int64    `json:"unit_price"`
	Total        int64    `json:"total"`
	Note         string   `json:"note,omitempty"`
}

type statusEntryPayload struct {
	Previous   string `json:"previous,omitempty"`
	New        string `json:"new"`
	Note       string `json:"note,omitempty"`
	RecordedAt string `json:"recorded_at"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			BeverageID:   item.BeverageID,
			BeverageName: item.BeverageName,
			AddOnNames:   item.AddOnNames,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Total:        item.Total,
			Note:         item.Note,
		})
	}

	history := make([]statusEntryPayload, 0, len(order.History))
	for _, change := range order.History {
		entry := statusEntryPayload{
			New:        string(change.New),
			Note:       change.Note,
			RecordedAt: formatTime(change.RecordedAt),
		}
		if change.Previous != nil {
			entry.Previous = string(*change.Previous)
		}
		history = append(history, entry)
	}

	return orderPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		Currency:      order.Currency,
		Subtotal:      order.Totals.Subtotal,
		Discount:      order.Totals.Discount,
		Total:         order.Totals.Total,
		Items:         items,
		Note:          order.Note,
		History:       history,
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
		DeliveredAt:   formatTimePointer(order.DeliveredAt),
		CancelledAt:   formatTimePointer(order.CancelledAt),
	}
}

func decodeTransitionRequest(body []byte, dst *transitionRequest) error {
	if len(body) == 0 {
		return nil
	}
	return decodeJSON(body, dst)
}
