package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore keeps users and products in process memory. It backs
// STORE_DRIVER=memory and the handler tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*domain.User
	products map[uuid.UUID]*domain.Product
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]*domain.User),
		products: make(map[uuid.UUID]*domain.Product),
	}
}

// Users returns a UserRepository view of the store
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Products returns a ProductRepository view of the store
func (s *MemoryStore) Products() ProductRepository { return memoryProducts{s} }

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.CartItems = make(map[string]int, len(u.CartItems))
	for k, v := range u.CartItems {
		c.CartItems[k] = v
	}
	return &c
}

func copyProduct(p *domain.Product) *domain.Product {
	c := *p
	c.Images = append([]string{}, p.Images...)
	return &c
}

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) conflicts(user *domain.User) bool {
	for id, u := range m.s.users {
		if id == user.ID {
			continue
		}
		if u.ExternalID == user.ExternalID || (user.Email != "" && u.Email == user.Email) {
			return true
		}
	}
	return false
}

func (m memoryUsers) Create(ctx context.Context, user *domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.users[user.ID]; ok || m.conflicts(user) {
		return ErrUserAlreadyExists
	}
	m.s.users[user.ID] = copyUser(user)
	return nil
}

func (m memoryUsers) Update(ctx context.Context, user *domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if m.conflicts(user) {
		return ErrUserAlreadyExists
	}
	next := copyUser(user)
	next.ExternalID = current.ExternalID
	next.CreatedAt = current.CreatedAt
	m.s.users[user.ID] = next
	return nil
}

func (m memoryUsers) UpdateProfile(ctx context.Context, user *domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, u := range m.s.users {
		if u.ExternalID != user.ExternalID {
			continue
		}
		candidate := *u
		candidate.Email = user.Email
		if m.conflicts(&candidate) {
			return ErrUserAlreadyExists
		}
		u.Name = user.Name
		u.Email = user.Email
		u.AvatarURI = user.AvatarURI
		u.UpdatedAt = user.UpdatedAt
		return nil
	}
	return ErrUserNotFound
}

func (m memoryUsers) DeleteByExternalID(ctx context.Context, externalID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for id, u := range m.s.users {
		if u.ExternalID == externalID {
			delete(m.s.users, id)
			return nil
		}
	}
	return ErrUserNotFound
}

func (m memoryUsers) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, u := range m.s.users {
		if u.ExternalID == externalID {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (m memoryUsers) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	u, ok := m.s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

func (m memoryUsers) SetSellerRole(ctx context.Context, externalID string, seller bool) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, u := range m.s.users {
		if u.ExternalID == externalID {
			u.Role = roleFor(seller)
			u.IsSeller = seller
			u.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrUserNotFound
}

type memoryProducts struct{ s *MemoryStore }

func (m memoryProducts) Create(ctx context.Context, product *domain.Product) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	m.s.products[product.ID] = copyProduct(product)
	return nil
}

func (m memoryProducts) Update(ctx context.Context, product *domain.Product) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.products[product.ID]
	if !ok {
		return ErrProductNotFound
	}
	next := copyProduct(product)
	next.OwnerID = current.OwnerID
	next.CreatedAtEpoch = current.CreatedAtEpoch
	m.s.products[product.ID] = next
	return nil
}

func (m memoryProducts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	p, ok := m.s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return copyProduct(p), nil
}

func (m memoryProducts) List(ctx context.Context, ownerID *uuid.UUID) ([]*domain.Product, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	products := []*domain.Product{}
	for _, p := range m.s.products {
		if ownerID != nil && p.OwnerID != *ownerID {
			continue
		}
		products = append(products, copyProduct(p))
	}

	sort.Slice(products, func(i, j int) bool {
		if products[i].CreatedAtEpoch != products[j].CreatedAtEpoch {
			return products[i].CreatedAtEpoch > products[j].CreatedAtEpoch
		}
		return products[i].ID.String() < products[j].ID.String()
	})

	return products, nil
}
