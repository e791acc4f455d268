package backup

import (
	"time"
)

type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled" conf:"enabled"`
	CRON    string `json:"cron" yaml:"cron" conf:"cron"`
	// Dir is the local directory exports are written to.
	Dir string `json:"dir" yaml:"dir" conf:"dir"`
	// RetentionDays is how long local exports are kept. Zero disables
	// pruning.
	RetentionDays int `json:"retention_days" yaml:"retention_days" conf:"retention_days"`
	// WebDAV, when set, mirrors each export to a WebDAV share.
	WebDAV *WebDAVConfig `json:"webdav,omitempty" yaml:"webdav" conf:"webdav"`
}

type WebDAVConfig struct {
	URL             string `json:"url" yaml:"url" conf:"url"`
	Username        string `json:"username" yaml:"username" conf:"username"`
	Password        string `json:"password" yaml:"password" conf:"password"`
	Path            string `json:"path" yaml:"path" conf:"path"`
	InsecureSkipTLS bool   `json:"insecure_skip_tls" yaml:"insecure_skip_tls" conf:"insecure_skip_tls"`
}

const (
	// exportPrefix names export directories; pruning only ever touches
	// entries carrying it.
	exportPrefix = "approvalhub-backup-"

	manifestVersion = "1.0"

	approvalsFile = "approvals.jsonl"
	grantsFile    = "grants.jsonl"
	manifestFile  = "manifest.json"
)

// Manifest describes one export, written last so a directory without a
// manifest is an aborted export.
type Manifest struct {
	Version    string    `json:"version"`
	AppVersion string    `json:"app_version"`
	CreatedAt  time.Time `json:"created_at"`
	Approvals  int       `json:"approvals"`
	Grants     int       `json:"grants"`
	Files      []string  `json:"files"`

	// Dir is the export directory, relative to the configured base.
	// Not serialized; filled by Export for the caller.
	Dir string `json:"-"`
}

// ConflictStrategy controls how a restore treats rows that already exist.
type ConflictStrategy string

const (
	ConflictStrategySkip      ConflictStrategy = "skip"
	ConflictStrategyOverwrite ConflictStrategy = "overwrite"
)

type RestoreOptions struct {
	IncludeApprovals         bool
	IncludeGrants            bool
	ApprovalConflictStrategy ConflictStrategy
}

// RestoreResult counts what a restore actually applied.
type RestoreResult struct {
	ApprovalsRestored int `json:"approvals_restored"`
	ApprovalsSkipped  int `json:"approvals_skipped"`
	GrantsRestored    int `json:"grants_restored"`
}
