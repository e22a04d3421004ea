package transport

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/assets"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const multipartMemory = 8 << 20

// ProductListResponse is the body of the listing endpoints
type ProductListResponse struct {
	Success  bool              `json:"success"`
	Products []*domain.Product `json:"products"`
}

// ProductResponse is the body of single product endpoints
type ProductResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Product *domain.Product `json:"product"`
}

// ProductHandler handles HTTP requests for the catalog
type ProductHandler struct {
	products       service.ProductService
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewProductHandler creates a new ProductHandler. maxUploadBytes bounds a whole multipart request.
func NewProductHandler(products service.ProductService, maxUploadBytes int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		products:       products,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers the product routes. Mutations run behind
// requireSeller and the optional rate limiter.
func (h *ProductHandler) RegisterRoutes(r chi.Router, requireSeller, rateLimit func(http.Handler) http.Handler) {
	if rateLimit == nil {
		rateLimit = passthrough
	}

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(requireSeller)
			r.Get("/seller", h.ListOwn)

			r.With(rateLimit).Post("/", h.Create)
			r.With(rateLimit).Put("/{id}", h.Update)
		})
	})
}

// List returns every product, newest first
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondServiceError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{Success: true, Products: products})
}

// ListOwn returns the calling seller's products, newest first
func (h *ProductHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	seller, _ := middleware.GetUser(r.Context())

	products, err := h.products.ListByOwner(r.Context(), seller.ID)
	if err != nil {
		respondServiceError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{Success: true, Products: products})
}

// Get returns a single product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ProductResponse{Success: true, Product: product})
}

// Create handles a multipart product submission
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	seller, _ := middleware.GetUser(r.Context())

	if err := h.parseForm(w, r); err != nil {
		h.respondFormError(w, err)
		return
	}

	in := service.ProductInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}
	var err error
	if in.Price, err = parseAmount(r, "price", "Price"); err != nil {
		respondServiceError(w, err, h.logger)
		return
	}
	if in.OfferPrice, err = parseAmount(r, "offerPrice", "Offer price"); err != nil {
		respondServiceError(w, err, h.logger)
		return
	}

	product, err := h.products.Create(r.Context(), seller, in, formFiles(r))
	if err != nil {
		respondServiceError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, ProductResponse{
		Success: true,
		Message: "Product added",
		Product: product,
	})
}

// Update handles a multipart edit of an owned product
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	seller, _ := middleware.GetUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	if err := h.parseForm(w, r); err != nil {
		h.respondFormError(w, err)
		return
	}

	var in service.ProductUpdate
	in.Patch.Title = optionalString(r, "title")
	in.Patch.Description = optionalString(r, "description")
	in.Patch.Category = optionalString(r, "category")
	if in.Patch.Price, err = parseAmount(r, "price", "Price"); err != nil {
		respondServiceError(w, err, h.logger)
		return
	}
	if in.Patch.OfferPrice, err = parseAmount(r, "offerPrice", "Offer price"); err != nil {
		respondServiceError(w, err, h.logger)
		return
	}
	if in.KeepImages, in.HasKeepList, err = parseKeepList(r); err != nil {
		respondServiceError(w, err, h.logger)
		return
	}

	product, err := h.products.Update(r.Context(), seller, id, in, formFiles(r))
	if err != nil {
		respondServiceError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductResponse{
		Success: true,
		Message: "Product updated",
		Product: product,
	})
}

// parseForm accepts multipart bodies and, for requests without files, url-encoded ones
func (h *ProductHandler) parseForm(w http.ResponseWriter, r *http.Request) error {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

func (h *ProductHandler) respondFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return
	}
	h.logger.Debug("Unreadable product form", zap.Error(err))
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
}

func formFiles(r *http.Request) []assets.File {
	if r.MultipartForm == nil {
		return nil
	}
	headers := r.MultipartForm.File["images"]
	files := make([]assets.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, assets.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Open:        openPart(fh),
		})
	}
	return files
}

func openPart(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

func hasField(r *http.Request, name string) bool {
	_, ok := r.Form[name]
	return ok
}

func optionalString(r *http.Request, name string) *string {
	if !hasField(r, name) {
		return nil
	}
	v := r.FormValue(name)
	return &v
}

func parseAmount(r *http.Request, name, label string) (*float64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &service.ValidationError{Message: label + " must be a number"}
	}
	return &v, nil
}

// parseKeepList reads existingImages either as one JSON array or as repeated fields
func parseKeepList(r *http.Request) ([]string, bool, error) {
	values, ok := r.Form["existingImages"]
	if !ok {
		return nil, false, nil
	}

	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var keep []string
		if err := json.Unmarshal([]byte(values[0]), &keep); err != nil {
			return nil, false, &service.ValidationError{Message: "existingImages must be a JSON array of image URLs"}
		}
		return keep, true, nil
	}

	keep := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			keep = append(keep, v)
		}
	}
	return keep, true, nil
}
