package log

import (
	"context"
)

// Hook enriches entries with fields derived from the context,
// e.g. trace and request identifiers. Hooks run on every entry
// that passes the level check, in registration order.
type Hook interface {
	Apply(ctx context.Context, msg string, fields ...Field) []Field
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, msg string, fields ...Field) []Field

func (f HookFunc) Apply(ctx context.Context, msg string, fields ...Field) []Field {
	return f(ctx, msg, fields...)
}
