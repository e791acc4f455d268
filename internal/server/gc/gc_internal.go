package gc

import (
	"context"
	"time"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/pkg/xcontext"
)

// cleanupTimeout bounds one cleanup run across all of its batches.
const cleanupTimeout = 10 * time.Minute

// Retention runs without a caller identity, so each run opens an
// audited enforcement bypass. The context is detached so a shutdown
// of the scheduler does not abort a delete batch mid-flight.
func (w *Worker) runCleanupWithSystemContext(ctx context.Context) {
	ctx, cancel := xcontext.DetachWithTimeout(ctx, cleanupTimeout)
	defer cancel()

	ctx = authz.WithSystemBypass(ctx, "gc-retention")
	w.runCleanup(ctx)
}
