// Package storefront is a Go client for the storefront API. A Session caches
// the signed-in user, the product list and a cart for one session lifetime.
package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError carries the failure message returned by the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront: %d %s", e.StatusCode, e.Message)
}

// User is the profile returned by GET /user
type User struct {
	ID         string         `json:"id"`
	ExternalID string         `json:"externalId"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	AvatarURI  string         `json:"avatarUri"`
	Role       string         `json:"role"`
	IsSeller   bool           `json:"isSeller"`
	CartItems  map[string]int `json:"cartItems"`
}

// Product is a catalog entry
type Product struct {
	ID             string   `json:"id"`
	OwnerID        string   `json:"ownerId"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Price          float64  `json:"price"`
	OfferPrice     float64  `json:"offerPrice"`
	Images         []string `json:"images"`
	CreatedAtEpoch int64    `json:"createdAtEpoch"`
}

// Client issues authenticated requests against one API base URL
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentUser fetches the signed-in user's profile
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var body struct {
		User *User `json:"user"`
	}
	if err := c.get(ctx, "/user", &body); err != nil {
		return nil, err
	}
	if body.User == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "response carried no user"}
	}
	return body.User, nil
}

// Products fetches the public catalog, newest first
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	return c.products(ctx, "/products")
}

// SellerProducts fetches the caller's own products, newest first
func (c *Client) SellerProducts(ctx context.Context) ([]Product, error) {
	return c.products(ctx, "/products/seller")
}

func (c *Client) products(ctx context.Context, path string) ([]Product, error) {
	var body struct {
		Products []Product `json:"products"`
	}
	if err := c.get(ctx, path, &body); err != nil {
		return nil, err
	}
	return body.Products, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storefront: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("storefront: read %s: %w", path, err)
	}

	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &envelope)

	if resp.StatusCode >= 400 || !envelope.Success {
		msg := envelope.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("storefront: decode %s: %w", path, err)
	}
	return nil
}
