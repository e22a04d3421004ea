package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a postgres backed UserRepository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, external_id, name, email, avatar_uri, role, is_seller, cart_items, created_at, updated_at`

// Create inserts a new user using parameterized queries
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	user.EnsureCart()
	cart, err := json.Marshal(user.CartItems)
	if err != nil {
		return fmt.Errorf("failed to encode cart items: %w", err)
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.ExternalID,
		user.Name,
		user.Email,
		user.AvatarURI,
		user.Role,
		user.IsSeller,
		string(cart),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// Update overwrites every mutable column of the user identified by ID
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	user.EnsureCart()
	cart, err := json.Marshal(user.CartItems)
	if err != nil {
		return fmt.Errorf("failed to encode cart items: %w", err)
	}

	query := `
		UPDATE users
		SET name = $2, email = $3, avatar_uri = $4, role = $5,
		    is_seller = $6, cart_items = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.AvatarURI,
		user.Role,
		user.IsSeller,
		string(cart),
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return expectOneRow(result, ErrUserNotFound)
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, avatar_uri = $4, updated_at = $5
		WHERE external_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, user.ExternalID, user.Name, user.Email, user.AvatarURI, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user profile: %w", err)
	}

	return expectOneRow(result, ErrUserNotFound)
}

// DeleteByExternalID removes the user mirrored from the given identity
func (r *userRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE external_id = $1`, externalID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return expectOneRow(result, ErrUserNotFound)
}

// FindByExternalID retrieves a user by identity provider id
func (r *userRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, externalID))
}

// FindByID retrieves a user by internal id
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// SetSellerRole grants or revokes the seller role, keeping role and flag in step
func (r *userRepository) SetSellerRole(ctx context.Context, externalID string, seller bool) error {
	query := `
		UPDATE users
		SET role = $2, is_seller = $3, updated_at = NOW()
		WHERE external_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, externalID, roleFor(seller), seller)
	if err != nil {
		return fmt.Errorf("failed to set seller role: %w", err)
	}

	return expectOneRow(result, ErrUserNotFound)
}

func (r *userRepository) scanOne(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var cart []byte
	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Name,
		&user.Email,
		&user.AvatarURI,
		&user.Role,
		&user.IsSeller,
		&cart,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if len(cart) > 0 {
		if err := json.Unmarshal(cart, &user.CartItems); err != nil {
			return nil, fmt.Errorf("failed to decode cart items: %w", err)
		}
	}
	user.EnsureCart()

	return user, nil
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}
