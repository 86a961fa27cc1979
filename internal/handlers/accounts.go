package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cafeluna/api/internal/platform/httpx"
	"github.com/cafeluna/api/internal/services"
)

const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

// AccountHandlers exposes registration and login endpoints.
type AccountHandlers struct {
	users   services.UserService
	limiter rateLimiter
}

// NewAccountHandlers constructs account handlers with a per-IP login limiter.
func NewAccountHandlers(users services.UserService) *AccountHandlers {
	return &AccountHandlers{
		users:   users,
		limiter: newSimpleRateLimiter(loginRateLimit, loginRateWindow, nil),
	}
}

// Routes wires the /auth endpoints onto the provided router.
func (h *AccountHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/register", h.register)
	r.Post("/login", h.login)
}

func (h *AccountHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("account_service_unavailable", "account service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req registerRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	profile, err := h.users.Register(ctx, services.RegisterUserCommand{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.writeAccountError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, profileResponse{Profile: buildProfilePayload(profile)})
}

func (h *AccountHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("account_service_unavailable", "account service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many login attempts; retry later", http.StatusTooManyRequests))
		return
	}

	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	session, err := h.users.Login(ctx, services.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeAccountError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, sessionResponse{
		Token:     session.Token,
		ExpiresAt: formatTime(session.ExpiresAt),
		Profile:   buildProfilePayload(session.User),
	})
}

func (h *AccountHandlers) writeAccountError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrEmailTaken):
		httpx.WriteError(ctx, w, httpx.NewError("email_taken", "email is already registered", http.StatusConflict))
	case errors.Is(err, services.ErrInvalidCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "email or password is incorrect", http.StatusUnauthorized))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("account_error", "account operation failed", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileResponse struct {
	Profile profilePayload `json:"profile"`
}

type sessionResponse struct {
	Token     string         `json:"token"`
	ExpiresAt string         `json:"expires_at"`
	Profile   profilePayload `json:"profile"`
}

type profilePayload struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name,omitempty"`
	Role          string `json:"role"`
	LoyaltyPoints int64  `json:"loyalty_points"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

func buildProfilePayload(profile services.UserProfile) profilePayload {
	return profilePayload{
		ID:            strings.TrimSpace(profile.ID),
		Email:         profile.Email,
		DisplayName:   profile.DisplayName,
		Role:          string(profile.Role),
		LoyaltyPoints: profile.LoyaltyPoints,
		CreatedAt:     formatTime(profile.CreatedAt),
		UpdatedAt:     formatTime(profile.UpdatedAt),
	}
}
