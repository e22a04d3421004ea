package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// RoleUser is the role assigned to every reconciled user
	RoleUser = "user"
	// RoleSeller grants product creation and editing
	RoleSeller = "seller"
)

// User is the local record mirrored from the external identity provider
type User struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	ExternalID string         `json:"externalId" db:"external_id"`
	Name       string         `json:"name" db:"name"`
	Email      string         `json:"email" db:"email"`
	AvatarURI  string         `json:"avatarUri" db:"avatar_uri"`
	Role       string         `json:"role" db:"role"`
	IsSeller   bool           `json:"isSeller" db:"is_seller"`
	CartItems  map[string]int `json:"cartItems" db:"cart_items"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time      `json:"updatedAt" db:"updated_at"`
}

// IsSeller reports whether the user may create and edit products.
// Legacy records carry a free-text role while newer ones carry the boolean
// flag; either one is sufficient.
func IsSeller(user *User) bool {
	if user == nil {
		return false
	}
	role := strings.ToLower(strings.TrimSpace(user.Role))
	return role == RoleSeller || user.IsSeller
}

// EnsureCart makes sure CartItems is never nil
func (u *User) EnsureCart() {
	if u.CartItems == nil {
		u.CartItems = map[string]int{}
	}
}
