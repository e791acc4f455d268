package gc

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	"github.com/zhenzou/executors"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/server/biz"
	"github.com/looplj/approvalhub/internal/server/db"
)

// defaultBatchSize is the default batch size for cleanup operations
// This can be overridden for testing.
var defaultBatchSize = 500

type Config struct {
	CRON string `json:"cron" yaml:"cron" conf:"cron" validate:"required"`
	// RetentionDays is how long decided requests are kept. Zero or
	// negative disables retention cleanup entirely.
	RetentionDays int  `json:"retention_days" yaml:"retention_days" conf:"retention_days"`
	VacuumEnabled bool `json:"vacuum_enabled" yaml:"vacuum_enabled" conf:"vacuum_enabled"`
	VacuumFull    bool `json:"vacuum_full" yaml:"vacuum_full" conf:"vacuum_full"`
}

// Worker prunes decided approval requests past their retention window
// and grants left behind by deleted users. Pending requests are never
// touched.
type Worker struct {
	ApprovalService   *biz.ApprovalService
	PermissionService *biz.PermissionService
	Executor          executors.ScheduledExecutor
	DB                *db.DB
	Config            Config
	CancelFunc        context.CancelFunc
}

type Params struct {
	fx.In

	Config            Config
	ApprovalService   *biz.ApprovalService
	PermissionService *biz.PermissionService
	DB                *db.DB
}

// NewWorker creates the retention worker with its own single-slot
// schedule executor.
func NewWorker(params Params) *Worker {
	return &Worker{
		ApprovalService:   params.ApprovalService,
		PermissionService: params.PermissionService,
		Executor:          executors.NewPoolScheduleExecutor(executors.WithMaxConcurrent(1)),
		DB:                params.DB,
		Config:            params.Config,
	}
}

// getBatchSize returns the batch size for cleanup deletes.
func (w *Worker) getBatchSize() int {
	return defaultBatchSize
}

func (w *Worker) Start(ctx context.Context) error {
	cancelFunc, err := w.Executor.ScheduleFuncAtCronRate(
		w.runCleanupWithSystemContext,
		executors.CRONRule{Expr: w.Config.CRON},
	)
	if err != nil {
		return err
	}

	w.CancelFunc = cancelFunc

	log.Info(ctx, "GC worker started",
		log.String("cron", w.Config.CRON),
		log.Int("retention_days", w.Config.RetentionDays),
		log.Bool("vacuum_enabled", w.Config.VacuumEnabled),
	)

	return nil
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.CancelFunc != nil {
		w.CancelFunc()
	}

	return w.Executor.Shutdown(ctx)
}

// runCleanup executes the retention cleanup based on the configured window.
func (w *Worker) runCleanup(ctx context.Context) {
	log.Info(ctx, "Starting automatic cleanup process")

	if w.Config.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -w.Config.RetentionDays)

		deleted, err := w.cleanupDecidedApprovals(ctx, cutoff)
		if err != nil {
			log.Error(ctx, "Failed to cleanup decided approvals", log.Cause(err))
		} else {
			log.Info(ctx, "Successfully cleaned up decided approvals",
				log.Int("deleted_count", deleted),
				log.Time("cutoff_time", cutoff),
			)
		}
	} else {
		log.Debug(ctx, "Retention cleanup disabled, skipping")
	}

	// Grants left behind by deleted users are dead weight for scope
	// resolution; orphan pruning does not depend on the retention
	// window.
	pruned, err := w.PermissionService.PruneOrphanedGrants(ctx, w.getBatchSize())
	if err != nil {
		log.Error(ctx, "Failed to prune orphaned grants", log.Cause(err))
	} else if pruned > 0 {
		log.Info(ctx, "Pruned orphaned grants", log.Int("pruned_count", pruned))
	}

	// Run VACUUM after cleanup to reclaim storage space (SQLite and PostgreSQL)
	if w.Config.VacuumEnabled {
		if err := w.runVacuum(ctx); err != nil {
			log.Error(ctx, "Failed to run VACUUM after cleanup", log.Cause(err))
		}
	}

	log.Info(ctx, "Automatic cleanup process completed")
}

// cleanupDecidedApprovals deletes decided requests older than the cutoff
// in batches to keep transactions small.
func (w *Worker) cleanupDecidedApprovals(ctx context.Context, cutoff time.Time) (int, error) {
	batchSize := w.getBatchSize()
	totalDeleted := 0

	for {
		deleted, err := w.ApprovalService.DeleteDecidedBefore(ctx, cutoff, batchSize)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to delete batch: %w", err)
		}

		if deleted == 0 {
			break
		}

		totalDeleted += deleted
		log.Debug(ctx, "Deleted batch of decided approvals",
			log.Int("batch_size", deleted),
			log.Int("total_deleted", totalDeleted),
		)
	}

	return totalDeleted, nil
}

// runVacuum executes VACUUM on SQLite/PostgreSQL to reclaim storage space.
// This should be called after cleanup operations to defragment the database file.
func (w *Worker) runVacuum(ctx context.Context) error {
	if w.DB == nil {
		return fmt.Errorf("no database handle")
	}

	d := w.DB.Dialect()
	if d != dialect.SQLite && d != dialect.Postgres {
		log.Debug(ctx, "Database does not support VACUUM, skipping",
			log.String("dialect", d))

		return nil
	}

	log.Info(ctx, "Starting database VACUUM operation",
		log.String("dialect", d),
		log.Bool("vacuum_full", w.Config.VacuumFull))

	startTime := time.Now()

	vacuumSQL := "VACUUM"
	if d == dialect.Postgres && w.Config.VacuumFull {
		vacuumSQL = "VACUUM FULL"
	}

	if _, err := w.DB.Exec(ctx, vacuumSQL); err != nil {
		return fmt.Errorf("failed to execute %s: %w", vacuumSQL, err)
	}

	log.Info(ctx, "Database VACUUM completed successfully",
		log.Duration("duration", time.Since(startTime)),
		log.String("command", vacuumSQL))

	return nil
}

// RunVacuumNow manually triggers the VACUUM operation.
func (w *Worker) RunVacuumNow(ctx context.Context) error {
	return w.runVacuum(ctx)
}

// RunCleanupNow manually triggers the cleanup process.
// This can be useful for testing or manual execution.
func (w *Worker) RunCleanupNow(ctx context.Context) error {
	w.runCleanupWithSystemContext(ctx)
	return nil
}
