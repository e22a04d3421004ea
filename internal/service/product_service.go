package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/assets"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotOwner        = errors.New("not allowed")
	ErrProductNotFound = repository.ErrProductNotFound
)

// ProductInput holds the fields of a create request. Nil prices were not submitted.
type ProductInput struct {
	Title       string
	Description string
	Category    string
	Price       *float64
	OfferPrice  *float64
}

// ProductUpdate holds the fields of an edit request. When HasKeepList is
// false the stored images are all kept; otherwise only KeepImages survive.
type ProductUpdate struct {
	Patch       domain.ProductPatch
	KeepImages  []string
	HasKeepList bool
}

// ProductService defines the product business logic
type ProductService interface {
	Create(ctx context.Context, seller *domain.User, in ProductInput, files []assets.File) (*domain.Product, error)
	Update(ctx context.Context, seller *domain.User, id uuid.UUID, in ProductUpdate, files []assets.File) (*domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error)
}

type productService struct {
	products repository.ProductRepository
	uploader *assets.Uploader
	logger   *zap.Logger
	now      func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(products repository.ProductRepository, uploader *assets.Uploader, logger *zap.Logger) ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &productService{
		products: products,
		uploader: uploader,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the input, uploads the images and stores the product.
// Nothing is persisted and no asset is left behind when any step fails.
func (s *productService) Create(ctx context.Context, seller *domain.User, in ProductInput, files []assets.File) (*domain.Product, error) {
	if len(files) == 0 {
		return nil, invalid(MsgNoImages)
	}
	if in.Price == nil {
		return nil, invalid("Price is required")
	}
	if in.OfferPrice == nil {
		return nil, invalid("Offer price is required")
	}

	now := s.now()
	product := &domain.Product{
		ID:             uuid.New(),
		OwnerID:        seller.ID,
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		Category:       strings.TrimSpace(in.Category),
		Price:          *in.Price,
		OfferPrice:     *in.OfferPrice,
		CreatedAtEpoch: now.UnixMilli(),
		UpdatedAt:      now,
	}

	if err := validateProduct(product); err != nil {
		return nil, err
	}

	uris, err := s.uploader.UploadAll(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("failed to upload product images: %w", err)
	}
	product.Images = uris

	if err := s.products.Create(ctx, product); err != nil {
		s.uploader.Release(context.WithoutCancel(ctx), uris)
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("user_id", seller.ID.String()),
		zap.Int("images", len(uris)),
	)

	return product, nil
}

// Update applies the patch and image changes of an owner's edit request.
// Released images are deleted after the record is persisted; failures there
// are logged and never reach the caller.
func (s *productService) Update(ctx context.Context, seller *domain.User, id uuid.UUID, in ProductUpdate, files []assets.File) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.OwnerID != seller.ID {
		s.logger.Warn("Product edit by non-owner rejected",
			zap.String("product_id", id.String()),
			zap.String("user_id", seller.ID.String()),
		)
		return nil, ErrNotOwner
	}

	in.Patch.Apply(product)
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	keep := product.Images
	if in.HasKeepList {
		keep = in.KeepImages
	}
	kept, removed := domain.MergeImages(product.Images, keep, nil)
	if len(kept) == 0 && len(files) == 0 {
		return nil, invalid(MsgNoImages)
	}

	var uploaded []string
	if len(files) > 0 {
		uploaded, err = s.uploader.UploadAll(ctx, files)
		if err != nil {
			return nil, fmt.Errorf("failed to upload product images: %w", err)
		}
	}

	product.Images = append(kept, uploaded...)
	product.UpdatedAt = s.now()

	if err := s.products.Update(ctx, product); err != nil {
		s.uploader.Release(context.WithoutCancel(ctx), uploaded)
		return nil, err
	}

	if failed := s.uploader.Release(context.WithoutCancel(ctx), removed); failed > 0 {
		s.logger.Warn("Some released product images could not be deleted",
			zap.String("product_id", product.ID.String()),
			zap.Int("failed", failed),
		)
	}

	s.logger.Info("Product updated",
		zap.String("product_id", product.ID.String()),
		zap.String("user_id", seller.ID.String()),
		zap.Int("images", len(product.Images)),
		zap.Int("released", len(removed)),
	)

	return product, nil
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *productService) List(ctx context.Context) ([]*domain.Product, error) {
	return s.products.List(ctx, nil)
}

func (s *productService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	return s.products.List(ctx, &ownerID)
}
