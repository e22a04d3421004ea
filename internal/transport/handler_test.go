package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"storefront/internal/assets"
	"storefront/internal/domain"
	"storefront/internal/identity"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// cdnStore hands out sequential URIs and remembers deletions
type cdnStore struct {
	mu      sync.Mutex
	next    int
	deleted []string
}

func (s *cdnStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("https://cdn.test/%d", s.next), nil
}

func (s *cdnStore) Delete(ctx context.Context, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, uri)
	return nil
}

type testApp struct {
	router http.Handler
	store  *repository.MemoryStore
	assets *cdnStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	cdn := &cdnStore{}

	uploader := assets.NewUploader(cdn, 2, 5*time.Second, metrics.Nop{}, logger)
	products := service.NewProductService(store.Products(), uploader, logger)
	gate := service.NewGate(store.Users())

	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret, logger))
	NewUserHandler(logger).RegisterRoutes(r, middleware.RequireUser(gate, logger))
	NewProductHandler(products, 10<<20, logger).RegisterRoutes(r, middleware.RequireSeller(gate, logger), nil)

	return &testApp{router: r, store: store, assets: cdn}
}

func (a *testApp) seed(t *testing.T, externalID, role string, isSeller bool) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:         uuid.New(),
		ExternalID: externalID,
		Name:       "Test " + externalID,
		Email:      externalID + "@example.com",
		Role:       role,
		IsSeller:   isSeller,
	}
	if err := a.store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

func (a *testApp) do(req *http.Request, subject string) *httptest.ResponseRecorder {
	if subject != "" {
		claims := jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		req.Header.Set("Authorization", "Bearer "+signed)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// productForm builds a multipart body with the given fields and n image parts
func productForm(t *testing.T, method, target string, fields map[string][]string, images int) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(name, v); err != nil {
				t.Fatalf("Failed to write field: %v", err)
			}
		}
	}
	for i := 0; i < images; i++ {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="img%d.png"`, i))
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("Failed to create part: %v", err)
		}
		part.Write([]byte("png"))
	}
	mw.Close()

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validFields() map[string][]string {
	return map[string][]string{
		"title":       {"Lamp"},
		"description": {"A desk lamp"},
		"category":    {"Home"},
		"price":       {"40"},
		"offerPrice":  {"30"},
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestGetCurrentUser_DerivesSellerAndDefaultsCart(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "user_legacy", "Seller", false)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/user", nil), "user_legacy")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Success bool           `json:"success"`
		User    map[string]any `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if !body.Success {
		t.Error("Expected success=true")
	}
	if body.User["isSeller"] != true {
		t.Errorf("Expected isSeller=true for a legacy seller role, got %v", body.User["isSeller"])
	}
	if cart, ok := body.User["cartItems"].(map[string]any); !ok || len(cart) != 0 {
		t.Errorf("Expected empty cartItems object, got %v", body.User["cartItems"])
	}
}

func TestGetCurrentUser_GateFailures(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name    string
		subject string
		status  int
		message string
	}{
		{"anonymous", "", http.StatusUnauthorized, "Not authorized. Login required"},
		{"unknown identity", "user_ghost", http.StatusNotFound, "User not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(httptest.NewRequest(http.MethodGet, "/user", nil), tt.subject)
			if rec.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, rec.Code)
			}
			body := decode[middleware.ErrorResponse](t, rec)
			if body.Success || body.Message != tt.message {
				t.Errorf("Expected failure %q, got %+v", tt.message, body)
			}
		})
	}
}

func TestCreateProduct_RequiresImages(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "user_seller", domain.RoleUser, true)

	rec := app.do(productForm(t, http.MethodPost, "/products", validFields(), 0), "user_seller")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
	body := decode[middleware.ErrorResponse](t, rec)
	if body.Message != service.MsgNoImages {
		t.Errorf("Expected message %q, got %q", service.MsgNoImages, body.Message)
	}
}

func TestCreateProduct_NonSellerForbidden(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "user_buyer", domain.RoleUser, false)

	rec := app.do(productForm(t, http.MethodPost, "/products", validFields(), 1), "user_buyer")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected status 403, got %d", rec.Code)
	}
	if len(app.assets.deleted) != 0 || app.assets.next != 0 {
		t.Error("Expected no asset activity for a rejected caller")
	}
}

func TestCreateProduct_RejectsBadPrice(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "user_seller", domain.RoleUser, true)

	fields := validFields()
	fields["price"] = []string{"forty"}
	rec := app.do(productForm(t, http.MethodPost, "/products", fields, 1), "user_seller")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
}

func createProduct(t *testing.T, app *testApp, subject string, images int) *domain.Product {
	t.Helper()
	rec := app.do(productForm(t, http.MethodPost, "/products", validFields(), images), subject)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[ProductResponse](t, rec)
	if body.Message != "Product added" {
		t.Errorf("Expected message %q, got %q", "Product added", body.Message)
	}
	return body.Product
}

func TestUpdateProduct_KeepListReleasesDroppedImageOnce(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "user_seller", domain.RoleUser, true)
	product := createProduct(t, app, "user_seller", 3)
	if len(product.Images) != 3 {
		t.Fatalf("Expected 3 images, got %v", product.Images)
	}
	a, b, c := product.Images[0], product.Images[1], product.Images[2]

	keep, _ := json.Marshal([]string{a, c})
	fields := map[string][]string{
		"title":          {"Brass lamp"},
		"existingImages": {string(keep)},
	}
	rec := app.do(productForm(t, http.MethodPut, "/products/"+product.ID.String(), fields, 1), "user_seller")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	updated := decode[ProductResponse](t, rec).Product
	if updated.Title != "Brass lamp" || updated.Price != product.Price {
		t.Errorf("Expected title patched and price kept, got %+v", updated)
	}
	want := []string{a, c, "https://cdn.test/4"}
	if fmt.Sprint(updated.Images) != fmt.Sprint(want) {
		t.Errorf("Expected images %v, got %v", want, updated.Images)
	}
	if fmt.Sprint(app.assets.deleted) != fmt.Sprint([]string{b}) {
		t.Errorf("Expected only %s released, got %v", b, app.assets.deleted)
	}
}

func TestUpdateProduct_RepeatedKeepFields(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "user_seller", domain.RoleUser, true)
	product := createProduct(t, app, "user_seller", 2)

	fields := map[string][]string{"existingImages": {product.Images[1]}}
	rec := app.do(productForm(t, http.MethodPut, "/products/"+product.ID.String(), fields, 0), "user_seller")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[ProductResponse](t, rec).Product.Images; len(got) != 1 || got[0] != product.Images[1] {
		t.Errorf("Expected only the kept image, got %v", got)
	}
}

func TestUpdateProduct_NonOwnerForbidden(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "user_owner", domain.RoleUser, true)
	app.seed(t, "user_rival", domain.RoleSeller, false)
	product := createProduct(t, app, "user_owner", 1)

	rec := app.do(productForm(t, http.MethodPut, "/products/"+product.ID.String(), map[string][]string{"title": {"Mine"}}, 0), "user_rival")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected status 403, got %d", rec.Code)
	}
	if body := decode[middleware.ErrorResponse](t, rec); body.Message != "Not allowed" {
		t.Errorf("Expected %q, got %q", "Not allowed", body.Message)
	}
}

func TestProductLookups(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "user_seller", domain.RoleUser, true)
	app.seed(t, "user_other", domain.RoleUser, true)
	own := createProduct(t, app, "user_seller", 1)
	createProduct(t, app, "user_other", 1)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/products", nil), "")
	if got := decode[ProductListResponse](t, rec).Products; len(got) != 2 {
		t.Errorf("Expected 2 products in the public listing, got %d", len(got))
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/products/seller", nil), "user_seller")
	got := decode[ProductListResponse](t, rec).Products
	if len(got) != 1 || got[0].ID != own.ID {
		t.Errorf("Expected only the seller's own product, got %+v", got)
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/products/"+own.ID.String(), nil), "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		rec = app.do(httptest.NewRequest(http.MethodGet, "/products/"+id, nil), "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected status 404 for %s, got %d", id, rec.Code)
		}
	}
}

func TestRespondServiceError_Unexpected(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, errors.New("boom"), zap.NewNop())
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
	if body := decode[middleware.ErrorResponse](t, rec); body.Message != "Something went wrong" {
		t.Errorf("Expected generic message, got %q", body.Message)
	}
}

// identityApp wires the webhook route alone
func identityApp(t *testing.T, store *repository.MemoryStore, verifier *middleware.WebhookVerifier, withRedis bool) (http.Handler, *identity.Service) {
	t.Helper()
	logger := zap.NewNop()
	identities := identity.NewService(store.Users(), metrics.Nop{}, logger)

	handler := NewWebhookHandler(identities, nil, time.Hour, logger)
	if withRedis {
		handler.redis = newRedis(t)
	}

	r := chi.NewRouter()
	handler.RegisterRoutes(r, middleware.VerifyWebhook(verifier, logger), nil)
	return r, identities
}

func TestCreateProduct_OversizedUploadRejected(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "user_seller", domain.RoleUser, true)

	fields := validFields()
	fields["description"] = []string{string(bytes.Repeat([]byte("x"), 11<<20))}
	rec := app.do(productForm(t, http.MethodPost, "/products", fields, 1), "user_seller")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rec.Code)
	}
	if app.assets.next != 0 {
		t.Error("Expected no uploads for a rejected request")
	}
}
