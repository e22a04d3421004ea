package repository

import (
	"context"
	"errors"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this external id or email already exists")
	ErrProductNotFound   = errors.New("product not found")
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	// UpdateProfile writes only name, email, avatar and updatedAt of the user
	// with the same ExternalID. Role, seller flag and cart are left untouched.
	UpdateProfile(ctx context.Context, user *domain.User) error
	DeleteByExternalID(ctx context.Context, externalID string) error
	FindByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	SetSellerRole(ctx context.Context, externalID string, seller bool) error
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// List returns products newest first, restricted to one owner when ownerID is set
	List(ctx context.Context, ownerID *uuid.UUID) ([]*domain.Product, error)
}

func roleFor(seller bool) string {
	if seller {
		return domain.RoleSeller
	}
	return domain.RoleUser
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
