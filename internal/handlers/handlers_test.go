package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/platform/auth"
	"github.com/cafeluna/api/internal/services"
)

type stubVerifier struct {
	claims map[string]*auth.SessionClaims
}

func (v *stubVerifier) Verify(tokenStr string) (*auth.SessionClaims, error) {
	if claims, ok := v.claims[tokenStr]; ok {
		return claims, nil
	}
	return nil, auth.ErrTokenInvalid
}

func newTestAuthenticator() *auth.Authenticator {
	return auth.NewAuthenticator(&stubVerifier{claims: map[string]*auth.SessionClaims{
		"customer-token": {
			RegisteredClaims: jwt.RegisteredClaims{Subject: "usr_customer"},
			Email:            "cliente@example.com",
			DisplayName:      "Cliente",
			Role:             auth.RoleCustomer,
		},
		"staff-token": {
			RegisteredClaims: jwt.RegisteredClaims{Subject: "usr_staff"},
			Email:            "barista@example.com",
			DisplayName:      "Barista",
			Role:             auth.RoleStaff,
		},
	}})
}

func doRequest(t *testing.T, router chi.Router, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type stubOrderService struct {
	createFn  func(ctx context.Context, cmd services.CreateOrderFromCartCommand) (services.Order, error)
	advanceFn func(ctx context.Context, cmd services.AdvanceStatusCommand) (services.Order, error)
	setFn     func(ctx context.Context, cmd services.SetStatusCommand) (services.Order, error)
	cancelFn  func(ctx context.Context, cmd services.CancelOrderCommand) (services.CancelResult, error)
	getFn     func(ctx context.Context, orderID string) (services.Order, error)
	listFn    func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	queueFn   func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Order], error)
}

func (s *stubOrderService) CreateFromCart(ctx context.Context, cmd services.CreateOrderFromCartCommand) (services.Order, error) {
	return s.createFn(ctx, cmd)
}

func (s *stubOrderService) AdvanceStatus(ctx context.Context, cmd services.AdvanceStatusCommand) (services.Order, error) {
	return s.advanceFn(ctx, cmd)
}

func (s *stubOrderService) SetStatus(ctx context.Context, cmd services.SetStatusCommand) (services.Order, error) {
	return s.setFn(ctx, cmd)
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.CancelResult, error) {
	return s.cancelFn(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	return s.getFn(ctx, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	return s.listFn(ctx, filter)
}

func (s *stubOrderService) KitchenQueue(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	return s.queueFn(ctx, pager)
}

type stubCartService struct {
	getFn    func(ctx context.Context, userID string) (services.Cart, error)
	addFn    func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error)
	updateFn func(ctx context.Context, cmd services.UpdateCartItemCommand) (services.Cart, error)
	removeFn func(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error)
	clearFn  func(ctx context.Context, userID string) error
}

func (s *stubCartService) GetOrCreateCart(ctx context.Context, userID string) (services.Cart, error) {
	return s.getFn(ctx, userID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
	return s.addFn(ctx, cmd)
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, cmd services.UpdateCartItemCommand) (services.Cart, error) {
	return s.updateFn(ctx, cmd)
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error) {
	return s.removeFn(ctx, cmd)
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	return s.clearFn(ctx, userID)
}

type stubUserService struct {
	registerFn      func(ctx context.Context, cmd services.RegisterUserCommand) (services.UserProfile, error)
	loginFn         func(ctx context.Context, cmd services.LoginCommand) (services.Session, error)
	getProfileFn    func(ctx context.Context, userID string) (services.UserProfile, error)
	updateProfileFn func(ctx context.Context, cmd services.UpdateProfileCommand) (services.UserProfile, error)
	creditFn        func(ctx context.Context, cmd services.CreditLoyaltyCommand) (int64, error)
	notificationsFn func(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.Notification], error)
}

func (s *stubUserService) Register(ctx context.Context, cmd services.RegisterUserCommand) (services.UserProfile, error) {
	return s.registerFn(ctx, cmd)
}

func (s *stubUserService) Login(ctx context.Context, cmd services.LoginCommand) (services.Session, error) {
	return s.loginFn(ctx, cmd)
}

func (s *stubUserService) GetProfile(ctx context.Context, userID string) (services.UserProfile, error) {
	return s.getProfileFn(ctx, userID)
}

func (s *stubUserService) UpdateProfile(ctx context.Context, cmd services.UpdateProfileCommand) (services.UserProfile, error) {
	return s.updateProfileFn(ctx, cmd)
}

func (s *stubUserService) CreditLoyalty(ctx context.Context, cmd services.CreditLoyaltyCommand) (int64, error) {
	return s.creditFn(ctx, cmd)
}

func (s *stubUserService) ListNotifications(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.Notification], error) {
	return s.notificationsFn(ctx, userID, pager)
}

func testOrder() services.Order {
	created := time.Date(2025, time.May, 1, 9, 30, 0, 0, time.UTC)
	return services.Order{
		ID:            "ord_000TEST",
		OrderNumber:   "CF-2025-000042",
		UserID:        "usr_customer",
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodPix,
		Currency:      "BRL",
		Totals:        domain.OrderTotals{Subtotal: 2450, Discount: 123, Total: 2327},
		Items: []domain.OrderLineItem{
			{
				BeverageID:   "bev_espresso",
				BeverageName: "Espresso",
				Quantity:     2,
				UnitPrice:    600,
				Total:        1200,
				Note:         "sem açúcar",
			},
		},
		Note:      "Item 1 (Espresso): sem açúcar",
		CreatedAt: created,
		UpdatedAt: created,
	}
}
