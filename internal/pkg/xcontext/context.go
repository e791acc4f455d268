package xcontext

import (
	"context"
	"time"
)

// DetachWithTimeout derives a context that survives cancellation of ctx
// but still expires after timeout. Values (identity, trace ids) carry
// over. Background writes like audit records use it so a client
// disconnect does not abort them.
func DetachWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
