package authz

import (
	"context"
	"errors"
	"fmt"
)

// IdentityType defines the kind of authenticated caller.
type IdentityType int

const (
	// IdentityTypeUnknown unknown identity type.
	IdentityTypeUnknown IdentityType = iota
	// IdentityTypeSystem system identity (background tasks, internal operations).
	IdentityTypeSystem
	// IdentityTypeUser identity established from a signed-in user.
	IdentityTypeUser
	// IdentityTypeAPIKey identity established from an API key.
	IdentityTypeAPIKey
	// IdentityTypeTest test identity (only for test environment).
	IdentityTypeTest
)

// String returns string representation of IdentityType.
func (t IdentityType) String() string {
	switch t {
	case IdentityTypeSystem:
		return "system"
	case IdentityTypeUser:
		return "user"
	case IdentityTypeAPIKey:
		return "apikey"
	case IdentityTypeTest:
		return "test"
	case IdentityTypeUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ErrNoIdentity is returned when an operation requires an identity
// and none was established on the context.
var ErrNoIdentity = errors.New("authz: no identity in context")

// ErrNotOwner is returned when an owner-only operation is attempted by
// a non-owner identity.
var ErrNotOwner = errors.New("authz: operation requires owner")

// Identity represents the authenticated caller as seen by scope
// resolution. Each request carries at most one Identity, guaranteed
// by WithIdentity's set-once semantics.
type Identity struct {
	Type IdentityType
	// ID is the row id of the backing user, zero for system identities.
	ID int
	// GUID is the stable public identifier used to match entity rows.
	GUID    string
	Email   string
	Name    string
	IsOwner bool
	// Attrs holds additional attributes a field binding may refer to.
	Attrs map[string]string
}

// Attr returns the named identity attribute. The built-in attributes
// guid, email and name resolve to the corresponding fields; anything
// else is looked up in Attrs.
func (id *Identity) Attr(name string) (string, bool) {
	switch name {
	case "guid":
		return id.GUID, id.GUID != ""
	case "email":
		return id.Email, id.Email != ""
	case "name":
		return id.Name, id.Name != ""
	default:
		v, ok := id.Attrs[name]
		return v, ok
	}
}

// IsSystem checks if it is a system identity.
func (id *Identity) IsSystem() bool {
	return id.Type == IdentityTypeSystem
}

// IsUser checks if it is a user identity.
func (id *Identity) IsUser() bool {
	return id.Type == IdentityTypeUser
}

// IsAPIKey checks if it is an API key identity.
func (id *Identity) IsAPIKey() bool {
	return id.Type == IdentityTypeAPIKey
}

// IsTest checks if it is a test identity.
func (id *Identity) IsTest() bool {
	return id.Type == IdentityTypeTest
}

// String returns string representation of the identity (for audit logs).
func (id *Identity) String() string {
	if id == nil {
		return "unknown"
	}

	switch id.Type {
	case IdentityTypeSystem:
		return "system"
	case IdentityTypeUser:
		return fmt.Sprintf("user:%d(%s)", id.ID, id.GUID)
	case IdentityTypeAPIKey:
		return fmt.Sprintf("apikey:%d(%s)", id.ID, id.GUID)
	case IdentityTypeTest:
		return "test"
	case IdentityTypeUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// identityKey is an unexported key type to prevent external forgery.
type identityKey struct{}

// WithIdentity sets the identity, returning an error if a different one
// already exists. Ensures each context can only carry one identity,
// preventing identity mixing between middlewares.
func WithIdentity(ctx context.Context, id *Identity) (context.Context, error) {
	if existing, ok := GetIdentity(ctx); ok {
		if existing.Type != id.Type || existing.GUID != id.GUID {
			return ctx, fmt.Errorf("authz: identity conflict: existing=%s, new=%s", existing.String(), id.String())
		}

		return ctx, nil // Same identity, idempotent
	}

	return context.WithValue(ctx, identityKey{}, id), nil
}

// GetIdentity retrieves the identity from the context.
func GetIdentity(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	if !ok || id == nil {
		return nil, false
	}

	return id, true
}

// RequireIdentity returns the identity or ErrNoIdentity.
func RequireIdentity(ctx context.Context) (*Identity, error) {
	id, ok := GetIdentity(ctx)
	if !ok {
		return nil, ErrNoIdentity
	}

	return id, nil
}

// RequireOwner checks that the current identity is an owner,
// otherwise returns an error. Used to protect grant management.
func RequireOwner(ctx context.Context) error {
	id, err := RequireIdentity(ctx)
	if err != nil {
		return err
	}

	if !id.IsOwner && !id.IsSystem() && !id.IsTest() {
		return fmt.Errorf("%w, got %s", ErrNotOwner, id.String())
	}

	return nil
}
