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

func newAccountRouter(users *stubUserService) chi.Router {
	return NewRouter(WithAuthRoutes(NewAccountHandlers(users).Routes))
}

func TestRegisterAccount(t *testing.T) {
	var captured services.RegisterUserCommand
	users := &stubUserService{
		registerFn: func(ctx context.Context, cmd services.RegisterUserCommand) (services.UserProfile, error) {
			captured = cmd
			return services.UserProfile{
				ID:          "usr_000TEST",
				Email:       "cliente@example.com",
				DisplayName: "Cliente",
				Role:        domain.RoleCustomer,
				CreatedAt:   time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC),
			}, nil
		},
	}

	body := `{"email":"cliente@example.com","password":"segredo123","display_name":"Cliente"}`
	rec := doRequest(t, newAccountRouter(users), http.MethodPost, "/api/v1/auth/register", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Email != "cliente@example.com" || captured.DisplayName != "Cliente" {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp struct {
		Profile struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"profile"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Profile.ID != "usr_000TEST" || resp.Profile.Role != "customer" {
		t.Fatalf("unexpected profile payload %+v", resp.Profile)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := &stubUserService{
		registerFn: func(ctx context.Context, cmd services.RegisterUserCommand) (services.UserProfile, error) {
			return services.UserProfile{}, services.ErrEmailTaken
		},
	}

	body := `{"email":"cliente@example.com","password":"segredo123"}`
	rec := doRequest(t, newAccountRouter(users), http.MethodPost, "/api/v1/auth/register", "", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
	assertErrorCode(t, rec.Body.Bytes(), "email_taken")
}

func TestLoginReturnsSession(t *testing.T) {
	users := &stubUserService{
		loginFn: func(ctx context.Context, cmd services.LoginCommand) (services.Session, error) {
			return services.Session{
				Token:     "session-token",
				ExpiresAt: time.Date(2025, time.May, 1, 21, 0, 0, 0, time.UTC),
				User: services.UserProfile{
					ID:    "usr_000TEST",
					Email: cmd.Email,
					Role:  domain.RoleCustomer,
				},
			}, nil
		},
	}

	body := `{"email":"cliente@example.com","password":"segredo123"}`
	rec := doRequest(t, newAccountRouter(users), http.MethodPost, "/api/v1/auth/login", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "session-token" || resp.ExpiresAt == "" {
		t.Fatalf("unexpected session payload %+v", resp)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	users := &stubUserService{
		loginFn: func(ctx context.Context, cmd services.LoginCommand) (services.Session, error) {
			return services.Session{}, services.ErrInvalidCredentials
		},
	}

	body := `{"email":"cliente@example.com","password":"errada"}`
	rec := doRequest(t, newAccountRouter(users), http.MethodPost, "/api/v1/auth/login", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	assertErrorCode(t, rec.Body.Bytes(), "invalid_credentials")
}

func TestLoginRateLimited(t *testing.T) {
	users := &stubUserService{
		loginFn: func(ctx context.Context, cmd services.LoginCommand) (services.Session, error) {
			return services.Session{}, services.ErrInvalidCredentials
		},
	}

	router := newAccountRouter(users)
	body := `{"email":"cliente@example.com","password":"errada"}`

	var last int
	for i := 0; i < loginRateLimit+1; i++ {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/auth/login", "", body)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 after %d attempts, got %d", loginRateLimit+1, last)
	}
}
