package backup

import (
	"context"

	"github.com/looplj/approvalhub/internal/authz"
)

// Exports walk every request and grant regardless of who scheduled
// them, so each run opens an audited enforcement bypass.
func (w *Worker) runBackupWithSystemContext(ctx context.Context) {
	ctx = authz.WithSystemBypass(ctx, "backup-export")
	w.runBackup(ctx)
}
