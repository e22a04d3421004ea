package domain

import "strings"

// IdentityEventType names a lifecycle event emitted by the identity provider
type IdentityEventType string

const (
	IdentityCreated IdentityEventType = "identity.created"
	IdentityUpdated IdentityEventType = "identity.updated"
	IdentityDeleted IdentityEventType = "identity.deleted"
)

// ParseIdentityEventType accepts both the canonical "identity.*" names and the
// provider's native "user.*" spelling (optionally prefixed, e.g. "clerk/user.created").
func ParseIdentityEventType(raw string) (IdentityEventType, bool) {
	name := raw
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "identity.created", "user.created":
		return IdentityCreated, true
	case "identity.updated", "user.updated":
		return IdentityUpdated, true
	case "identity.deleted", "user.deleted":
		return IdentityDeleted, true
	}
	return "", false
}

// IdentityEvent is a single identity lifecycle event. Deleted events only carry ExternalID.
type IdentityEvent struct {
	Type       IdentityEventType
	ExternalID string
	FirstName  string
	LastName   string
	EmailList  []string
	AvatarURL  string
}

// DisplayName joins first and last name, trimming the surrounding space left by a missing part
func (e IdentityEvent) DisplayName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// PrimaryEmail returns the first listed address or "" when the list is empty
func (e IdentityEvent) PrimaryEmail() string {
	if len(e.EmailList) == 0 {
		return ""
	}
	return e.EmailList[0]
}
