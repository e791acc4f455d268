package conf

import (
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/metrics"
	"github.com/looplj/approvalhub/internal/pkg/xcache"
	"github.com/looplj/approvalhub/internal/server"
	"github.com/looplj/approvalhub/internal/server/backup"
	"github.com/looplj/approvalhub/internal/server/biz"
	"github.com/looplj/approvalhub/internal/server/db"
	"github.com/looplj/approvalhub/internal/server/gc"
)

// Module loads the configuration once and hands each component its
// own slice of it, so nothing outside this package depends on the
// shape of the full tree.
var Module = fx.Module("conf",
	fx.Provide(Load),
	fx.Provide(
		func(c Config) server.Config { return c.APIServer },
		func(c Config) log.Config { return c.Log },
		func(c Config) db.Config { return c.DB },
		func(c Config) xcache.Config { return c.Cache },
		func(c Config) metrics.Config { return c.Metrics },
		func(c Config) biz.PermissionsConfig { return c.Permissions },
		func(c Config) biz.AuditConfig { return c.Audit },
		func(c Config) biz.VersionConfig { return c.Version },
		func(c Config) gc.Config { return c.GC },
		func(c Config) backup.Config { return c.Backup },
	),
)
