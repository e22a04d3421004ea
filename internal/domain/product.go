package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a product in the catalog
type Product struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OwnerID        uuid.UUID `json:"ownerId" db:"owner_id"`
	Title          string    `json:"title" db:"title"`
	Description    string    `json:"description" db:"description"`
	Category       string    `json:"category" db:"category"`
	Price          float64   `json:"price" db:"price"`
	OfferPrice     float64   `json:"offerPrice" db:"offer_price"`
	Images         []string  `json:"images" db:"images"`
	CreatedAtEpoch int64     `json:"createdAtEpoch" db:"created_at_epoch"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// PrimaryImage returns the image shown first in listings, or "" when there is none.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductPatch carries the fields of an update request. Nil fields are left unchanged.
type ProductPatch struct {
	Title       *string
	Description *string
	Category    *string
	Price       *float64
	OfferPrice  *float64
}

// Apply overwrites the product fields present in the patch
func (p ProductPatch) Apply(product *Product) {
	if p.Title != nil {
		product.Title = *p.Title
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.OfferPrice != nil {
		product.OfferPrice = *p.OfferPrice
	}
}

// MergeImages computes the image list that results from keeping the given
// images and appending newly uploaded ones. Entries of keep that are not
// currently stored are ignored so a client cannot attach foreign assets.
// The returned removed slice lists stored images whose assets must be released.
func MergeImages(stored, keep, uploaded []string) (merged, removed []string) {
	storedSet := make(map[string]struct{}, len(stored))
	for _, img := range stored {
		storedSet[img] = struct{}{}
	}

	kept := make(map[string]struct{}, len(keep))
	merged = make([]string, 0, len(keep)+len(uploaded))
	for _, img := range keep {
		if _, ok := storedSet[img]; !ok {
			continue
		}
		if _, dup := kept[img]; dup {
			continue
		}
		kept[img] = struct{}{}
		merged = append(merged, img)
	}
	merged = append(merged, uploaded...)

	for _, img := range stored {
		if _, ok := kept[img]; !ok {
			removed = append(removed, img)
		}
	}

	return merged, removed
}
