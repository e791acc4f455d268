package biz

import (
	"context"

	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/scopes"
)

var Module = fx.Module("biz",
	fx.Provide(NewSystemService),
	fx.Provide(NewAuthService),
	fx.Provide(NewUserInvalidations),
	fx.Provide(NewUserService),
	fx.Provide(NewAPIKeyService),
	fx.Provide(NewPermissionService),
	fx.Provide(NewApprovalService),
	fx.Provide(NewAuditService),
	fx.Provide(NewVersionService),
	fx.Provide(NewScopeResolver),
	fx.Invoke(func(lc fx.Lifecycle, svc *AuditService) {
		authz.SetAuditLogger(svc.RecordBypass)

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return svc.Start(ctx)
			},
			OnStop: func(ctx context.Context) error {
				return svc.Stop(ctx)
			},
		})
	}),
	fx.Invoke(func(lc fx.Lifecycle, svc *UserService) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return svc.Start(ctx)
			},
			OnStop: func(ctx context.Context) error {
				return svc.Stop(ctx)
			},
		})
	}),
)

// NewScopeResolver builds the resolver over the registered action table
// and the configured permission backend.
func NewScopeResolver(permissions *PermissionService) *scopes.Resolver {
	return scopes.NewResolver(scopes.DefaultRegistry(), permissions)
}
