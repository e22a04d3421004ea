package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

var (
	ErrMissingCredential = errors.New("not authorized: login required")
	ErrNotSeller         = errors.New("not authorized: seller role required")
	ErrUserNotFound      = repository.ErrUserNotFound
)

// Gate resolves the caller identity to a local user and enforces the seller role
type Gate struct {
	users repository.UserRepository
}

// NewGate creates a Gate over the user store
func NewGate(users repository.UserRepository) *Gate {
	return &Gate{users: users}
}

// ResolveUser returns the local record for externalID.
// An empty identity yields ErrMissingCredential, an unknown one ErrUserNotFound.
func (g *Gate) ResolveUser(ctx context.Context, externalID string) (*domain.User, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, ErrMissingCredential
	}

	user, err := g.users.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	user.EnsureCart()
	return user, nil
}

// ResolveSeller is ResolveUser followed by the seller check
func (g *Gate) ResolveSeller(ctx context.Context, externalID string) (*domain.User, error) {
	user, err := g.ResolveUser(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if !domain.IsSeller(user) {
		return nil, ErrNotSeller
	}
	return user, nil
}
