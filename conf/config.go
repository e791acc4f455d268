package conf

import (
	"time"

	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/metrics"
	"github.com/looplj/approvalhub/internal/pkg/xcache"
	"github.com/looplj/approvalhub/internal/server"
	"github.com/looplj/approvalhub/internal/server/backup"
	"github.com/looplj/approvalhub/internal/server/biz"
	"github.com/looplj/approvalhub/internal/server/db"
	"github.com/looplj/approvalhub/internal/server/gc"
)

// Config is the full configuration tree. Sections map one to one onto
// config.yaml keys and onto APH_* environment variables, e.g.
// server.port is APH_SERVER_PORT.
type Config struct {
	APIServer   server.Config         `conf:"server" yaml:"server" json:"server"`
	Log         log.Config            `conf:"log" yaml:"log" json:"log"`
	DB          db.Config             `conf:"db" yaml:"db" json:"db"`
	Cache       xcache.Config         `conf:"cache" yaml:"cache" json:"cache"`
	Metrics     metrics.Config        `conf:"metrics" yaml:"metrics" json:"metrics"`
	Permissions biz.PermissionsConfig `conf:"permissions" yaml:"permissions" json:"permissions"`
	Audit       biz.AuditConfig       `conf:"audit" yaml:"audit" json:"audit"`
	Version     biz.VersionConfig     `conf:"version" yaml:"version" json:"version"`
	GC          gc.Config             `conf:"gc" yaml:"gc" json:"gc"`
	Backup      backup.Config         `conf:"backup" yaml:"backup" json:"backup"`
}

// Default is what a bare binary starts with: sqlite next to the
// binary, console logging, grants in the database, and the background
// workers on an off-peak schedule.
func Default() Config {
	return Config{
		APIServer: server.Config{
			Host:           "0.0.0.0",
			Port:           8090,
			Name:           "approvalhub",
			ReadTimeout:    30 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Log: log.Config{
			Name:   "approvalhub",
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		DB: db.Config{
			Dialect: "sqlite",
			DSN:     "file:approvalhub.db?cache=shared",
		},
		Cache: xcache.Config{
			Mode: "memory",
			Memory: xcache.MemoryConfig{
				Expiration:      5 * time.Minute,
				CleanupInterval: 10 * time.Minute,
			},
		},
		Metrics: metrics.Config{
			Exporter: "stdout",
			Interval: 30 * time.Second,
		},
		Permissions: biz.PermissionsConfig{
			Backend: "sql",
		},
		Audit: biz.AuditConfig{
			Path:     "denials.jsonl",
			DedupTTL: time.Minute,
		},
		GC: gc.Config{
			CRON:          "0 3 * * *",
			RetentionDays: 90,
		},
		Backup: backup.Config{
			CRON:          "0 2 * * *",
			Dir:           "backups",
			RetentionDays: 30,
		},
	}
}
