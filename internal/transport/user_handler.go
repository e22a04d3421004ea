package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserResponse is the body of GET /user
type UserResponse struct {
	Success bool         `json:"success"`
	User    *domain.User `json:"user"`
}

// UserHandler handles HTTP requests for the caller's own record
type UserHandler struct {
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(logger *zap.Logger) *UserHandler {
	return &UserHandler{logger: logger}
}

// RegisterRoutes registers the user routes behind requireUser
func (h *UserHandler) RegisterRoutes(r chi.Router, requireUser func(http.Handler) http.Handler) {
	r.With(requireUser).Get("/user", h.GetCurrent)
}

// GetCurrent returns the caller's record with the seller flag derived from
// both the legacy role and the boolean flag.
func (h *UserHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	resolved, ok := middleware.GetUser(r.Context())
	if !ok {
		h.logger.Error("User not found in context")
		middleware.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	user := *resolved
	user.IsSeller = domain.IsSeller(resolved)
	user.EnsureCart()

	middleware.RespondWithJSON(w, http.StatusOK, UserResponse{Success: true, User: &user})
}
