package authz

import (
	"context"
)

// NewTestContext creates a context with a Test identity (only for test environment).
func NewTestContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, identityKey{}, &Identity{Type: IdentityTypeTest})
}

// WithTestBypass creates a context with a Test identity and enforcement bypass.
func WithTestBypass(ctx context.Context) context.Context {
	bypassCtx, _ := WithBypassEnforcement(NewTestContext(ctx), "test")
	return bypassCtx
}
