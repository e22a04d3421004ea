package storefront

import (
	"context"
	"sync"
)

// Session holds the client-side state for one signed-in session.
// It is safe for concurrent use.
type Session struct {
	client *Client

	mu             sync.RWMutex
	user           *User
	seller         bool
	products       []Product
	sellerProducts []Product
	sellerLoaded   bool
	cart           []Product
}

// NewSession creates an empty session backed by client
func NewSession(client *Client) *Session {
	return &Session{client: client}
}

// Load resolves the signed-in user. The seller flag is the one derived by the
// server. The seller's own products are fetched once, and only for sellers.
func (s *Session) Load(ctx context.Context) error {
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return err
	}
	seller := user.IsSeller

	s.mu.RLock()
	needSellerList := seller && !s.sellerLoaded
	s.mu.RUnlock()

	var own []Product
	if needSellerList {
		if own, err = s.client.SellerProducts(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.seller = seller
	if needSellerList {
		s.sellerProducts = own
		s.sellerLoaded = true
	}
	return nil
}

// FetchProducts replaces the cached catalog with the server's
func (s *Session) FetchProducts(ctx context.Context) error {
	products, err := s.client.Products(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.products = products
	s.mu.Unlock()
	return nil
}

// AddToCart appends the cached product with the given id. Ids already in
// the cart and ids missing from the cached catalog are ignored.
func (s *Session) AddToCart(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.cart {
		if p.ID == productID {
			return
		}
	}
	for _, p := range s.products {
		if p.ID == productID {
			s.cart = append(s.cart, p)
			return
		}
	}
}

// RemoveFromCart drops the product with the given id, if present
func (s *Session) RemoveFromCart(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.cart[:0]
	for _, p := range s.cart {
		if p.ID != productID {
			kept = append(kept, p)
		}
	}
	s.cart = kept
}

// User returns the signed-in user, or nil before Load succeeds
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsSeller reports the derived seller flag of the signed-in user
func (s *Session) IsSeller() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seller
}

func (s *Session) Products() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Product(nil), s.products...)
}

func (s *Session) SellerProducts() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Product(nil), s.sellerProducts...)
}

func (s *Session) Cart() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Product(nil), s.cart...)
}
