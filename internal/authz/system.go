package authz

import (
	"context"
	"fmt"
)

// NewSystemContext creates a context with a System identity (for background tasks).
func NewSystemContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, identityKey{}, &Identity{Type: IdentityTypeSystem})
}

func WithSystemBypass(ctx context.Context, reason string) context.Context {
	bypassCtx, _ := WithBypassEnforcement(NewSystemContext(ctx), reason)
	return bypassCtx
}

func RunWithSystemBypass[T any](ctx context.Context, reason string, fn func(ctx context.Context) (T, error)) (T, error) {
	return fn(WithSystemBypass(ctx, reason))
}

// RequireSystemIdentity checks if the current identity is System, otherwise
// returns an error. Used to protect sensitive background operations.
func RequireSystemIdentity(ctx context.Context) error {
	id, ok := GetIdentity(ctx)
	if !ok {
		return ErrNoIdentity
	}

	if !id.IsSystem() {
		return fmt.Errorf("authz: operation requires system identity, got %s", id.String())
	}

	return nil
}
