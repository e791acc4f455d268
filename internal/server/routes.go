package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/metrics"
	"github.com/looplj/approvalhub/internal/policy"
	"github.com/looplj/approvalhub/internal/scopes"
	"github.com/looplj/approvalhub/internal/server/api"
	"github.com/looplj/approvalhub/internal/server/biz"
	"github.com/looplj/approvalhub/internal/server/middleware"
)

type Handlers struct {
	fx.In

	System    *api.SystemHandlers
	Auth      *api.AuthHandlers
	Users     *api.UserHandlers
	APIKeys   *api.APIKeyHandlers
	Approvals *api.ApprovalHandlers
	Grants    *api.GrantHandlers
	Audit     *api.AuditHandlers
}

type Services struct {
	fx.In

	AuthService  *biz.AuthService
	AuditService *biz.AuditService
	Resolver     *scopes.Resolver
}

func SetupRoutes(server *Server, handlers Handlers, services Services) {
	server.Use(middleware.AccessLog())
	server.Use(middleware.WithLoggingTracing(server.Config.Trace))
	server.Use(middleware.WithMetrics())

	// Setup CORS middleware at server level if enabled
	if server.Config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = server.Config.CORS.AllowedOrigins
		corsConfig.AllowMethods = server.Config.CORS.AllowedMethods
		corsConfig.AllowHeaders = server.Config.CORS.AllowedHeaders
		corsConfig.ExposeHeaders = server.Config.CORS.ExposedHeaders
		corsConfig.AllowCredentials = server.Config.CORS.AllowCredentials
		corsConfig.MaxAge = server.Config.CORS.MaxAge

		corsHandler := cors.New(corsConfig)
		server.Use(corsHandler)
		server.OPTIONS("*any", corsHandler)
	}

	responder := policy.JSONResponder{}
	recorder := policy.Recorders(metrics.PolicyMetrics{}, services.AuditService)
	base := policy.NewChain(policy.RequireIdentity())

	// guard compiles one route's policy chain. MustScopeFilter panics on
	// unregistered actions, so a typo in this table aborts startup
	// instead of serving unscoped reads.
	guard := func(opts policy.ScopeFilterOptions) gin.HandlerFunc {
		chain := base.Append(policy.MustScopeFilter(services.Resolver, opts))
		return policy.Handler(chain, responder, recorder)
	}

	publicGroup := server.Group("", middleware.WithTimeout(server.Config.RequestTimeout))
	{
		// Health check endpoint - no authentication required
		publicGroup.GET("/health", handlers.System.Health)
		publicGroup.GET("/build-info", handlers.System.GetBuildInfo)
	}

	unSecureAdminGroup := server.Group("/admin", middleware.WithTimeout(server.Config.RequestTimeout))
	{
		// System Status and Initialize - DO NOT AUTH
		unSecureAdminGroup.GET("/system/status", handlers.System.GetSystemStatus)
		unSecureAdminGroup.POST("/system/initialize", handlers.System.InitializeSystem)
		// User Login - DO NOT AUTH
		unSecureAdminGroup.POST("/auth/signin", handlers.Auth.SignIn)
	}

	adminGroup := server.Group("/admin",
		middleware.WithTimeout(server.Config.RequestTimeout),
		middleware.WithJWTAuth(services.AuthService),
	)
	{
		adminGroup.GET("/me", handlers.Users.Me)
		adminGroup.GET("/users",
			guard(policy.ScopeFilterOptions{Action: scopes.ActionUserView, Field: "guid"}),
			handlers.Users.ListUsers,
		)
		adminGroup.POST("/users", handlers.Users.CreateUser)
		adminGroup.PUT("/users/:guid/status", handlers.Users.UpdateUserStatus)

		adminGroup.POST("/api-keys", handlers.APIKeys.CreateAPIKey)
		adminGroup.GET("/api-keys", handlers.APIKeys.ListAPIKeys)
		adminGroup.PUT("/api-keys/:id/status", handlers.APIKeys.UpdateAPIKeyStatus)

		adminGroup.GET("/grants", handlers.Grants.ListGrants)
		adminGroup.POST("/grants", handlers.Grants.CreateGrant)
		adminGroup.DELETE("/grants", handlers.Grants.DeleteGrant)

		adminGroup.GET("/audit/recent", handlers.Audit.RecentEntries)

		adminGroup.GET("/system/version-check", handlers.System.CheckForUpdate)
	}

	apiGroup := server.Group("/api/v1",
		middleware.WithTimeout(server.Config.RequestTimeout),
		middleware.WithAPIKeyAuth(services.AuthService),
	)
	{
		approvalGroup := apiGroup.Group("/approvals")
		approvalGroup.POST("",
			guard(policy.ScopeFilterOptions{Action: scopes.ActionApprovalManage, Field: "requester_guid"}),
			handlers.Approvals.CreateApproval,
		)
		approvalGroup.GET("",
			guard(policy.ScopeFilterOptions{Action: scopes.ActionApprovalView, Field: "requester_guid"}),
			handlers.Approvals.ListApprovals,
		)
		approvalGroup.GET("/stats",
			guard(policy.ScopeFilterOptions{Action: scopes.ActionApprovalView, Field: "requester_guid"}),
			handlers.Approvals.GetStats,
		)

		// Single-request reads mask existence outside the caller's
		// scope with a plain 404. Deciding with no decide scope at all
		// is a plain 403; it names no particular request.
		approvalGroup.GET("/:guid",
			guard(policy.ScopeFilterOptions{Action: scopes.ActionApprovalView, Field: "requester_guid", Error: &policy.NotFound}),
			handlers.Approvals.GetApproval,
		)
		approvalGroup.POST("/:guid/decision",
			guard(policy.ScopeFilterOptions{Action: scopes.ActionApprovalDecide, Field: "requester_guid"}),
			handlers.Approvals.DecideApproval,
		)
		approvalGroup.POST("/:guid/cancel",
			guard(policy.ScopeFilterOptions{Action: scopes.ActionApprovalManage, Field: "requester_guid", Error: &policy.NotFound}),
			handlers.Approvals.CancelApproval,
		)

		apiGroup.GET("/users",
			guard(policy.ScopeFilterOptions{Action: scopes.ActionUserView, Field: "guid"}),
			handlers.Users.ListUsers,
		)
	}
}
