package api

import "go.uber.org/fx"

// Module provides all HTTP handler groups.
var Module = fx.Module("api",
	fx.Provide(
		NewAuthHandlers,
		NewSystemHandlers,
		NewUserHandlers,
		NewAPIKeyHandlers,
		NewApprovalHandlers,
		NewGrantHandlers,
		NewAuditHandlers,
	),
)
