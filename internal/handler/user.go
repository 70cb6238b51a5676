package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/travel-blog/internal/model"
)

// UserService is the read-only user directory.
type UserService interface {
	GetUserProfile(ctx context.Context, userID string) *model.Profile
	GetTotalUsers(ctx context.Context) int
}

// UserHandler serves public profiles and the registered-user counter. Both
// endpoints always answer 200: missing data is replaced by placeholders.
type UserHandler struct {
	svc    UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(svc UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

// HandleProfile returns a user's public profile.
//
// HTTP: GET /api/users/{id}/profile
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetUserProfile(r.Context(), r.PathValue("id")))
}

// HandleTotalUsers returns the number of registered users.
//
// HTTP: GET /api/stats/users
func (h *UserHandler) HandleTotalUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"totalUsers": h.svc.GetTotalUsers(r.Context())})
}
