package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	ExternalIDKey contextKey = "external_id"
	UserKey       contextKey = "user"
	authErrorKey  contextKey = "auth_error"

	// SessionCookie is the cookie holding the identity provider's session token
	SessionCookie = "__session"
)

var (
	errMalformedAuthorization = errors.New("invalid authorization header format")
	errInvalidToken           = errors.New("invalid token")
	errTokenExpired           = errors.New("token expired")
)

// Authenticate resolves the caller identity from the session cookie, falling
// back to a bearer token when the cookie is missing or does not verify.
// Requests without a verifiable credential continue anonymously; the failure
// is kept in the context so that RequireUser and RequireSeller can report it.
func Authenticate(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var failure error
			for _, candidate := range credentials(r) {
				if candidate.err != nil {
					failure = candidate.err
					continue
				}
				externalID, err := parseSubject(candidate.token, jwtSecret)
				if err != nil {
					failure = tokenError(err)
					continue
				}
				ctx := context.WithValue(r.Context(), ExternalIDKey, externalID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if failure != nil {
				logger.Debug("No credential verified", zap.Error(failure))
				r = r.WithContext(context.WithValue(r.Context(), authErrorKey, failure))
			}
			next.ServeHTTP(w, r)
		})
	}
}

type credential struct {
	token string
	err   error
}

// credentials lists the presented credentials in resolution order: session cookie, then bearer token
func credentials(r *http.Request) []credential {
	var out []credential
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		out = append(out, credential{token: cookie.Value})
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return out
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return append(out, credential{err: errMalformedAuthorization})
	}
	return append(out, credential{token: parts[1]})
}

func tokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return errTokenExpired
	}
	return errInvalidToken
}

func parseSubject(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return subject, nil
}

// GetExternalID returns the authenticated identity, or "" for anonymous requests
func GetExternalID(ctx context.Context) string {
	externalID, _ := ctx.Value(ExternalIDKey).(string)
	return externalID
}

// AuthError returns why the presented credentials were rejected, or nil when
// none were presented or one verified.
func AuthError(ctx context.Context) error {
	err, _ := ctx.Value(authErrorKey).(error)
	return err
}
