package backup

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/studio-b12/gowebdav"
	"github.com/zhenzou/executors"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/log"
)

// defaultCRON runs the export daily at 2 AM.
const defaultCRON = "0 2 * * *"

type Worker struct {
	Service    *Service
	FS         afero.Fs
	Config     Config
	Executor   executors.ScheduledExecutor
	CancelFunc context.CancelFunc
}

type WorkerParams struct {
	fx.In

	Config  Config
	FS      afero.Fs
	Service *Service
}

func NewWorker(params WorkerParams) *Worker {
	return &Worker{
		Service:  params.Service,
		FS:       params.FS,
		Config:   params.Config,
		Executor: executors.NewPoolScheduleExecutor(executors.WithMaxConcurrent(1)),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	if !w.Config.Enabled {
		log.Info(ctx, "Scheduled export is disabled")
		return nil
	}

	cronExpr := w.Config.CRON
	if cronExpr == "" {
		cronExpr = defaultCRON
	}

	cancelFunc, err := w.Executor.ScheduleFuncAtCronRate(
		w.runBackupWithSystemContext,
		executors.CRONRule{Expr: cronExpr},
	)
	if err != nil {
		return fmt.Errorf("failed to schedule export: %w", err)
	}

	w.CancelFunc = cancelFunc

	log.Info(ctx, "Scheduled export enabled",
		log.String("cron", cronExpr),
		log.String("dir", w.Config.Dir),
	)

	return nil
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.CancelFunc != nil {
		w.CancelFunc()
	}

	return w.Executor.Shutdown(ctx)
}

func (w *Worker) runBackup(ctx context.Context) {
	log.Info(ctx, "Starting scheduled export")

	manifest, err := w.Service.Export(ctx)
	if err != nil {
		log.Error(ctx, "Export failed", log.Cause(err))
		return
	}

	if w.Config.WebDAV != nil {
		if err := w.upload(ctx, manifest); err != nil {
			log.Error(ctx, "Failed to mirror export to WebDAV", log.Cause(err))
		}
	}

	if err := w.Service.Prune(ctx); err != nil {
		log.Warn(ctx, "Failed to prune old exports", log.Cause(err))
	}

	log.Info(ctx, "Scheduled export completed")
}

func (w *Worker) upload(ctx context.Context, manifest *Manifest) error {
	client := webdavClient(w.Config.WebDAV)

	remoteRoot := normalizeRemotePath(w.Config.WebDAV.Path)
	remoteDir := remoteRoot + manifest.Dir

	if err := client.MkdirAll(remoteDir, 0o755); err != nil {
		return fmt.Errorf("failed to create remote directory: %w", err)
	}

	total := 0

	for _, name := range append(manifest.Files, manifestFile) {
		data, err := afero.ReadFile(w.FS, filepath.Join(w.Config.Dir, manifest.Dir, name))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}

		if err := client.Write(remoteDir+"/"+name, data, 0o644); err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}

		total += len(data)
	}

	log.Info(ctx, "Export mirrored to WebDAV",
		log.String("dir", remoteDir),
		log.Int("size", total),
	)

	if w.Config.RetentionDays > 0 {
		if err := w.cleanupRemote(ctx, client, remoteRoot); err != nil {
			log.Warn(ctx, "Failed to cleanup old remote exports", log.Cause(err))
		}
	}

	return nil
}

func (w *Worker) cleanupRemote(ctx context.Context, client *gowebdav.Client, remoteRoot string) error {
	entries, err := client.ReadDir(remoteRoot)
	if err != nil {
		return fmt.Errorf("failed to list remote exports: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -w.Config.RetentionDays)

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), exportPrefix) {
			continue
		}

		createdAt, ok := exportTime(entry.Name())
		if !ok || !createdAt.Before(cutoff) {
			continue
		}

		path := remoteRoot + entry.Name()
		if err := client.RemoveAll(path); err != nil {
			log.Warn(ctx, "Failed to delete old remote export",
				log.String("dir", path),
				log.Cause(err),
			)
		} else {
			log.Info(ctx, "Deleted old remote export", log.String("dir", path))
		}
	}

	return nil
}

// RunBackupNow triggers an immediate export outside the schedule.
func (w *Worker) RunBackupNow(ctx context.Context) error {
	w.runBackupWithSystemContext(ctx)
	return nil
}

// TestConnection probes the WebDAV server with the provided configuration.
func (w *Worker) TestConnection(ctx context.Context, config *WebDAVConfig) error {
	if config == nil {
		return fmt.Errorf("WebDAV configuration is missing")
	}

	return webdavClient(config).Connect()
}

func webdavClient(config *WebDAVConfig) *gowebdav.Client {
	client := gowebdav.NewClient(config.URL, config.Username, config.Password)
	if config.InsecureSkipTLS {
		//nolint:gosec // InsecureSkipVerify is opt-in for self-signed servers.
		client.SetTransport(&http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		})
	}

	return client
}

func normalizeRemotePath(path string) string {
	if path == "" {
		return "/"
	}

	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	return path
}
