package xcache

import (
	"time"

	"github.com/looplj/approvalhub/internal/pkg/watcher"
	"github.com/looplj/approvalhub/internal/pkg/xredis"
)

// Cache backend modes. An empty or unknown mode disables caching.
const (
	ModeMemory   = "memory"
	ModeRedis    = "redis"
	ModeTwoLevel = "two-level"
)

type Config struct {
	Mode   string        `conf:"mode" yaml:"mode" json:"mode"`
	Memory MemoryConfig  `conf:"memory" yaml:"memory" json:"memory"`
	Redis  xredis.Config `conf:"redis" yaml:"redis" json:"redis"`

	// Invalidation carries eviction signals between instances. Without it a
	// memory cache on instance A keeps serving a user that instance B updated.
	Invalidation watcher.Config `conf:"invalidation" yaml:"invalidation" json:"invalidation"`
}

type MemoryConfig struct {
	Expiration      time.Duration `conf:"expiration" yaml:"expiration" json:"expiration"`
	CleanupInterval time.Duration `conf:"cleanup_interval" yaml:"cleanup_interval" json:"cleanup_interval"`
}
