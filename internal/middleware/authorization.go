package middleware

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/service"

	"go.uber.org/zap"
)

// IdentityResolver maps an authenticated identity to a local user
type IdentityResolver interface {
	ResolveUser(ctx context.Context, externalID string) (*domain.User, error)
	ResolveSeller(ctx context.Context, externalID string) (*domain.User, error)
}

// RequireUser ensures the caller has a local user record
func RequireUser(resolver IdentityResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return requireResolved(resolver.ResolveUser, logger)
}

// RequireSeller ensures the caller is a seller
func RequireSeller(resolver IdentityResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return requireResolved(resolver.ResolveSeller, logger)
}

func requireResolved(resolve func(context.Context, string) (*domain.User, error), logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			externalID := GetExternalID(r.Context())
			if externalID == "" {
				if authErr := AuthError(r.Context()); authErr != nil {
					RespondWithError(w, http.StatusUnauthorized, authErr.Error())
					return
				}
			}

			user, err := resolve(r.Context(), externalID)
			if err != nil {
				status, message := GateStatus(err)
				if status == http.StatusInternalServerError {
					logger.Error("Failed to resolve caller", zap.String("external_id", externalID), zap.Error(err))
				} else {
					logger.Debug("Caller rejected",
						zap.String("external_id", externalID),
						zap.Int("status", status),
					)
				}
				RespondWithError(w, status, message)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GateStatus maps an authorization failure to its HTTP status and message
func GateStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMissingCredential):
		return http.StatusUnauthorized, "Not authorized. Login required"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, service.ErrNotSeller):
		return http.StatusForbidden, "Not authorized"
	default:
		return http.StatusInternalServerError, "Something went wrong"
	}
}

// GetUser returns the user resolved by RequireUser or RequireSeller
func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserKey).(*domain.User)
	return user, ok
}
