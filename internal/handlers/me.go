package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cafeluna/api/internal/platform/auth"
	"github.com/cafeluna/api/internal/platform/httpx"
	"github.com/cafeluna/api/internal/platform/pagination"
	"github.com/cafeluna/api/internal/services"
)

// MeHandlers exposes the authenticated user's profile and notifications.
type MeHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewMeHandlers constructs handlers for the /me group.
func NewMeHandlers(authn *auth.Authenticator, users services.UserService) *MeHandlers {
	return &MeHandlers{
		authn: authn,
		users: users,
	}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getProfile)
	r.Patch("/", h.patchProfile)
	r.Get("/notifications", h.listNotifications)
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("account_service_unavailable", "account service is unavailable", http.StatusServiceUnavailable))
		return
	}

	profile, err := h.users.GetProfile(ctx, identity.UID)
	if err != nil {
		h.writeProfileError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, profileResponse{Profile: buildProfilePayload(profile)})
}

func (h *MeHandlers) patchProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("account_service_unavailable", "account service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req struct {
		DisplayName *string `json:"display_name"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if req.DisplayName == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "no editable fields provided", http.StatusBadRequest))
		return
	}

	profile, err := h.users.UpdateProfile(ctx, services.UpdateProfileCommand{
		UserID:      identity.UID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.writeProfileError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, profileResponse{Profile: buildProfilePayload(profile)})
}

func (h *MeHandlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("account_service_unavailable", "account service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: 20, MaxPageSize: 50})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.users.ListNotifications(ctx, identity.UID, services.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		h.writeProfileError(ctx, w, err)
		return
	}

	items := make([]notificationPayload, 0, len(page.Items))
	for _, notification := range page.Items {
		items = append(items, notificationPayload{
			ID:          notification.ID,
			OrderID:     notification.OrderID,
			OrderNumber: notification.OrderNumber,
			Message:     notification.Message,
			Status:      string(notification.Status),
			CreatedAt:   formatTime(notification.CreatedAt),
		})
	}

	writeJSONResponse(w, http.StatusOK, notificationListResponse{
		Notifications: items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *MeHandlers) writeProfileError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("profile_not_found", "profile not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("account_error", "account operation failed", http.StatusInternalServerError))
	}
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

type notificationListResponse struct {
	Notifications []notificationPayload `json:"notifications"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type notificationPayload struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number,omitempty"`
	Message     string `json:"message"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}
