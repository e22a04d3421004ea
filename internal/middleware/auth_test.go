package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

// echoIdentity writes the resolved external id as the body
func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(GetExternalID(r.Context())))
	})
}

func TestProperty_AnonymousRequestsPassThrough(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without credentials reach the handler with no identity", prop.ForAll(
		func(pathSuffix string, method string) bool {
			handler := Authenticate(testSecret, zap.NewNop())(echoIdentity())

			req := httptest.NewRequest(method, "/"+pathSuffix, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusOK && w.Body.String() == ""
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ValidTokensCarryTheSubject(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("the sub claim becomes the caller identity", prop.ForAll(
		func(subject string, viaCookie bool) bool {
			handler := Authenticate(testSecret, zap.NewNop())(echoIdentity())
			token := signToken(t, testSecret, subject, time.Hour)

			req := httptest.NewRequest("GET", "/user", nil)
			if viaCookie {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
			} else {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusOK && w.Body.String() == subject
		},
		gen.Identifier(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthenticate_SessionCookieTakesPrecedence(t *testing.T) {
	handler := Authenticate(testSecret, zap.NewNop())(echoIdentity())

	req := httptest.NewRequest("GET", "/user", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: signToken(t, testSecret, "ext_cookie", time.Hour)})
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "ext_bearer", time.Hour))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Body.String() != "ext_cookie" {
		t.Errorf("expected the session identity, got %q", w.Body.String())
	}
}

func TestAuthenticate_BadCredentialsContinueAnonymously(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"expired", "Bearer " + signToken(t, testSecret, "ext_a", -time.Minute), "token expired"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", "ext_a", time.Hour), "invalid token"},
		{"empty subject", "Bearer " + signToken(t, testSecret, "", time.Hour), "invalid token"},
		{"garbage", "Bearer not.a.token", "invalid token"},
		{"missing bearer prefix", signToken(t, testSecret, "ext_a", time.Hour), "invalid authorization header format"},
		{"basic auth", "Basic dXNlcjpwYXNz", "invalid authorization header format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var recorded error
			handler := Authenticate(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				recorded = AuthError(r.Context())
				w.Write([]byte(GetExternalID(r.Context())))
			}))

			req := httptest.NewRequest("GET", "/products", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK || w.Body.String() != "" {
				t.Errorf("expected anonymous pass-through, got %d %q", w.Code, w.Body.String())
			}
			if recorded == nil || recorded.Error() != tt.message {
				t.Errorf("expected recorded error %q, got %v", tt.message, recorded)
			}
		})
	}
}

func TestAuthenticate_GatedRoutesReportRejectedCredential(t *testing.T) {
	resolver := stubResolver{users: map[string]*domain.User{"ext_a": {ExternalID: "ext_a"}}}
	handler := Authenticate(testSecret, zap.NewNop())(RequireUser(resolver, zap.NewNop())(echoIdentity()))

	req := httptest.NewRequest("GET", "/user", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: signToken(t, testSecret, "ext_a", -time.Minute)})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Message != "token expired" {
		t.Errorf("expected %q, got %q", "token expired", body.Message)
	}
}

func TestAuthenticate_FallsBackToBearerWhenCookieFails(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
	}{
		{"expired cookie", signToken(t, testSecret, "ext_cookie", -time.Minute)},
		{"foreign cookie", signToken(t, "other-secret", "ext_cookie", time.Hour)},
		{"garbage cookie", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Authenticate(testSecret, zap.NewNop())(echoIdentity())

			req := httptest.NewRequest("GET", "/user", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "ext_bearer", time.Hour))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK || w.Body.String() != "ext_bearer" {
				t.Errorf("expected the bearer identity, got %d %q", w.Code, w.Body.String())
			}
		})
	}
}

func TestAuthenticate_RejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "ext_a", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	handler := Authenticate(testSecret, zap.NewNop())(echoIdentity())
	req := httptest.NewRequest("GET", "/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Body.String() != "" {
		t.Errorf("expected no identity for an HS512 token, got %q", w.Body.String())
	}
}
