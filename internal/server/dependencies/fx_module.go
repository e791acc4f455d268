package dependencies

import (
	"context"

	"github.com/spf13/afero"
	"github.com/zhenzou/executors"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/pkg/httpclient"
	"github.com/looplj/approvalhub/internal/server/db"
)

var Module = fx.Module("dependencies",
	fx.Provide(log.New),
	fx.Provide(db.New),
	fx.Provide(httpclient.NewClient),
	fx.Provide(func() afero.Fs { return afero.NewOsFs() }),
	fx.Provide(NewExecutors),
	fx.Invoke(func(lc fx.Lifecycle, d *db.DB) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return d.Close()
			},
		})
	}),
	fx.Invoke(func(lc fx.Lifecycle, executor executors.ScheduledExecutor) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return executor.Shutdown(ctx)
			},
		})
	}),
)
