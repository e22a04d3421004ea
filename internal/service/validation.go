package service

import (
	"errors"

	"storefront/internal/domain"

	"github.com/go-playground/validator/v10"
)

var ErrValidation = errors.New("validation failed")

// MsgNoImages is returned when a product would end up without images
const MsgNoImages = "Please upload product images"

// ValidationError carries a client facing message and, when field rules
// failed, the validator errors behind it.
type ValidationError struct {
	Message string
	Cause   error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Cause}
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

var validate = validator.New()

type productRules struct {
	Title       string  `validate:"required,max=255"`
	Description string  `validate:"required"`
	Category    string  `validate:"required,max=100"`
	Price       float64 `validate:"gte=0"`
	OfferPrice  float64 `validate:"gte=0"`
}

func validateProduct(p *domain.Product) error {
	err := validate.Struct(productRules{
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		OfferPrice:  p.OfferPrice,
	})
	if err != nil {
		return &ValidationError{Message: "Invalid product fields", Cause: err}
	}
	return nil
}
