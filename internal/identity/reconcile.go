// Package identity mirrors user records from the external identity provider.
package identity

import (
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

// Action is the single store write a reconciled event results in
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionNoop   Action = "noop"
)

// Reconcile computes the next state of the local record for an event.
// current is nil when no record exists for the event's externalId.
// It never mutates current.
//
// A created event for an existing record overwrites the profile fields and
// keeps role, seller flag and cart, so replays converge on the same record.
func Reconcile(current *domain.User, event domain.IdentityEvent, now time.Time) (*domain.User, Action) {
	switch event.Type {
	case domain.IdentityCreated:
		if current == nil {
			return &domain.User{
				ID:         uuid.New(),
				ExternalID: event.ExternalID,
				Name:       event.DisplayName(),
				Email:      event.PrimaryEmail(),
				AvatarURI:  event.AvatarURL,
				Role:       domain.RoleUser,
				IsSeller:   false,
				CartItems:  map[string]int{},
				CreatedAt:  now,
				UpdatedAt:  now,
			}, ActionCreate
		}
		return withProfile(current, event, now)

	case domain.IdentityUpdated:
		if current == nil {
			return nil, ActionNoop
		}
		return withProfile(current, event, now)

	case domain.IdentityDeleted:
		if current == nil {
			return nil, ActionNoop
		}
		return nil, ActionDelete
	}

	return current, ActionNoop
}

func withProfile(current *domain.User, event domain.IdentityEvent, now time.Time) (*domain.User, Action) {
	name := event.DisplayName()
	email := event.PrimaryEmail()
	if current.Name == name && current.Email == email && current.AvatarURI == event.AvatarURL {
		return current, ActionNoop
	}

	next := *current
	next.CartItems = make(map[string]int, len(current.CartItems))
	for k, v := range current.CartItems {
		next.CartItems[k] = v
	}
	next.Name = name
	next.Email = email
	next.AvatarURI = event.AvatarURL
	next.UpdatedAt = now
	return &next, ActionUpdate
}
