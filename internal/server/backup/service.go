package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/looplj/approvalhub/internal/build"
	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/objects"
	"github.com/looplj/approvalhub/internal/server/biz"
)

type ServiceParams struct {
	fx.In

	Config            Config
	FS                afero.Fs
	ApprovalService   *biz.ApprovalService
	PermissionService *biz.PermissionService
}

// Service exports approval requests and grants as JSONL files and
// restores them. Exports never go through scope narrowing on their own;
// callers run them under the system context.
type Service struct {
	config      Config
	fs          afero.Fs
	approvals   *biz.ApprovalService
	permissions *biz.PermissionService
}

func NewService(params ServiceParams) *Service {
	return &Service{
		config:      params.Config,
		fs:          params.FS,
		approvals:   params.ApprovalService,
		permissions: params.PermissionService,
	}
}

// Export writes one timestamped export directory: approvals.jsonl,
// grants.jsonl and a manifest. A partial directory left by a failed
// export is removed.
func (s *Service) Export(ctx context.Context) (*Manifest, error) {
	name := exportPrefix + time.Now().Format("2006-01-02_15-04-05")
	dir := filepath.Join(s.config.Dir, name)

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	var (
		approvalCount int
		grantCount    int
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.exportApprovals(gctx, filepath.Join(dir, approvalsFile))
		approvalCount = n

		return err
	})

	g.Go(func() error {
		n, err := s.exportGrants(gctx, filepath.Join(dir, grantsFile))
		grantCount = n

		return err
	})

	if err := g.Wait(); err != nil {
		if rmErr := s.fs.RemoveAll(dir); rmErr != nil {
			log.Warn(ctx, "Failed to remove partial export", log.String("dir", dir), log.Cause(rmErr))
		}

		return nil, err
	}

	manifest := &Manifest{
		Version:    manifestVersion,
		AppVersion: build.Version,
		CreatedAt:  time.Now(),
		Approvals:  approvalCount,
		Grants:     grantCount,
		Files:      []string{approvalsFile, grantsFile},
		Dir:        name,
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := afero.WriteFile(s.fs, filepath.Join(dir, manifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	log.Info(ctx, "Export written",
		log.String("dir", dir),
		log.Int("approvals", approvalCount),
		log.Int("grants", grantCount),
	)

	return manifest, nil
}

func (s *Service) exportApprovals(ctx context.Context, path string) (n int, err error) {
	f, err := s.fs.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	err = s.approvals.ForEachApproval(ctx, func(a *biz.Approval) error {
		n++
		return enc.Encode(exportApprovalRecord(a))
	})
	if err != nil {
		return n, fmt.Errorf("failed to export approvals: %w", err)
	}

	if err = w.Flush(); err != nil {
		return n, fmt.Errorf("failed to flush %s: %w", path, err)
	}

	return n, nil
}

func (s *Service) exportGrants(ctx context.Context, path string) (n int, err error) {
	grants, err := s.permissions.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot grants: %w", err)
	}

	f, err := s.fs.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	for _, g := range grants {
		if err = enc.Encode(g); err != nil {
			return n, fmt.Errorf("failed to export grant: %w", err)
		}

		n++
	}

	if err = w.Flush(); err != nil {
		return n, fmt.Errorf("failed to flush %s: %w", path, err)
	}

	return n, nil
}

// Prune removes local exports older than the retention window.
func (s *Service) Prune(ctx context.Context) error {
	if s.config.RetentionDays <= 0 {
		return nil
	}

	entries, err := afero.ReadDir(s.fs, s.config.Dir)
	if err != nil {
		return fmt.Errorf("failed to list exports: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), exportPrefix) {
			continue
		}

		createdAt, ok := exportTime(entry.Name())
		if !ok || !createdAt.Before(cutoff) {
			continue
		}

		path := filepath.Join(s.config.Dir, entry.Name())
		if err := s.fs.RemoveAll(path); err != nil {
			log.Warn(ctx, "Failed to delete old export", log.String("dir", path), log.Cause(err))
		} else {
			log.Info(ctx, "Deleted old export", log.String("dir", path))
		}
	}

	return nil
}

// exportTime recovers the export timestamp from a directory name. The
// name is authoritative; filesystem mtimes do not survive copies.
func exportTime(name string) (time.Time, bool) {
	ts, err := time.ParseInLocation("2006-01-02_15-04-05", name[len(exportPrefix):], time.Local)
	if err != nil {
		return time.Time{}, false
	}

	return ts, true
}

// Restore reads an export directory back into the store.
func (s *Service) Restore(ctx context.Context, dir string, opts RestoreOptions) (*RestoreResult, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	if manifest.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported export version %q", manifest.Version)
	}

	result := &RestoreResult{}

	if opts.IncludeApprovals {
		if err := s.restoreApprovals(ctx, filepath.Join(dir, approvalsFile), opts, result); err != nil {
			return result, err
		}
	}

	if opts.IncludeGrants {
		if err := s.restoreGrants(ctx, filepath.Join(dir, grantsFile), result); err != nil {
			return result, err
		}
	}

	log.Info(ctx, "Restore completed",
		log.String("dir", dir),
		log.Int("approvals_restored", result.ApprovalsRestored),
		log.Int("approvals_skipped", result.ApprovalsSkipped),
		log.Int("grants_restored", result.GrantsRestored),
	)

	return result, nil
}

func (s *Service) restoreApprovals(ctx context.Context, path string, opts RestoreOptions, result *RestoreResult) error {
	overwrite := opts.ApprovalConflictStrategy == ConflictStrategyOverwrite

	return s.eachLine(path, func(line []byte) error {
		var rec approvalRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("failed to decode approval record: %w", err)
		}

		imported, err := s.approvals.ImportApproval(ctx, rec.approval(), overwrite)
		if err != nil {
			return err
		}

		if imported {
			result.ApprovalsRestored++
		} else {
			result.ApprovalsSkipped++
		}

		return nil
	})
}

func (s *Service) restoreGrants(ctx context.Context, path string, result *RestoreResult) error {
	return s.eachLine(path, func(line []byte) error {
		var grant objects.GrantInfo
		if err := json.Unmarshal(line, &grant); err != nil {
			return fmt.Errorf("failed to decode grant record: %w", err)
		}

		if err := s.permissions.Grant(ctx, grant); err != nil {
			return err
		}

		result.GrantsRestored++

		return nil
	})
}

func (s *Service) eachLine(path string, fn func(line []byte) error) error {
	f, err := s.fs.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if err := fn(line); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// approvalRecord is the JSONL shape of one exported request.
type approvalRecord struct {
	GUID          string          `json:"guid"`
	RequesterGUID string          `json:"requester_guid"`
	Title         string          `json:"title"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	DecidedByGUID string          `json:"decided_by_guid,omitempty"`
	DecisionNote  string          `json:"decision_note,omitempty"`
	DecidedAt     *time.Time      `json:"decided_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func exportApprovalRecord(a *biz.Approval) approvalRecord {
	return approvalRecord{
		GUID:          a.GUID,
		RequesterGUID: a.RequesterGUID,
		Title:         a.Title,
		Kind:          a.Kind,
		Amount:        a.Amount,
		Status:        string(a.Status),
		DecidedByGUID: a.DecidedByGUID,
		DecisionNote:  a.DecisionNote,
		DecidedAt:     a.DecidedAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (r approvalRecord) approval() *biz.Approval {
	return &biz.Approval{
		GUID:          r.GUID,
		RequesterGUID: r.RequesterGUID,
		Title:         r.Title,
		Kind:          r.Kind,
		Amount:        r.Amount,
		Status:        objects.ApprovalStatus(r.Status),
		DecidedByGUID: r.DecidedByGUID,
		DecisionNote:  r.DecisionNote,
		DecidedAt:     r.DecidedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
