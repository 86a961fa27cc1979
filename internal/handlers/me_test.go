package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/services"
)

func newMeRouter(users *stubUserService) chi.Router {
	return NewRouter(WithMeRoutes(NewMeHandlers(newTestAuthenticator(), users).Routes))
}

func TestGetProfile(t *testing.T) {
	users := &stubUserService{
		getProfileFn: func(ctx context.Context, userID string) (services.UserProfile, error) {
			if userID != "usr_customer" {
				t.Fatalf("expected caller user id, got %q", userID)
			}
			return services.UserProfile{
				ID:            userID,
				Email:         "cliente@example.com",
				Role:          domain.RoleCustomer,
				LoyaltyPoints: 23,
			}, nil
		},
	}

	rec := doRequest(t, newMeRouter(users), http.MethodGet, "/api/v1/me", "customer-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Profile struct {
			LoyaltyPoints int64 `json:"loyalty_points"`
		} `json:"profile"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Profile.LoyaltyPoints != 23 {
		t.Fatalf("expected 23 loyalty points, got %d", resp.Profile.LoyaltyPoints)
	}
}

func TestPatchProfileRequiresField(t *testing.T) {
	users := &stubUserService{}
	rec := doRequest(t, newMeRouter(users), http.MethodPatch, "/api/v1/me", "customer-token", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestListNotifications(t *testing.T) {
	var capturedPager services.Pagination
	users := &stubUserService{
		notificationsFn: func(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.Notification], error) {
			capturedPager = pager
			return domain.CursorPage[services.Notification]{
				Items: []services.Notification{
					{
						ID:          "ntf_1",
						UserID:      userID,
						OrderID:     "ord_000TEST",
						OrderNumber: "CF-2025-000042",
						Message:     "Pedido CF-2025-000042 confirmado pela loja.",
						Status:      domain.OrderStatusReceived,
						CreatedAt:   time.Date(2025, time.May, 1, 9, 35, 0, 0, time.UTC),
					},
				},
				NextPageToken: "",
			}, nil
		},
	}

	rec := doRequest(t, newMeRouter(users), http.MethodGet, "/api/v1/me/notifications?pageSize=5", "customer-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if capturedPager.PageSize != 5 {
		t.Fatalf("expected page size 5, got %d", capturedPager.PageSize)
	}

	var resp struct {
		Notifications []struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"notifications"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Notifications) != 1 {
		t.Fatalf("expected one notification, got %d", len(resp.Notifications))
	}
	if resp.Notifications[0].Message != "Pedido CF-2025-000042 confirmado pela loja." {
		t.Fatalf("unexpected message %q", resp.Notifications[0].Message)
	}
	if resp.Notifications[0].Status != "received" {
		t.Fatalf("unexpected status %q", resp.Notifications[0].Status)
	}
}
