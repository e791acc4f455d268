package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/contexts"
	"github.com/looplj/approvalhub/internal/pkg/httpclient"
	"github.com/looplj/approvalhub/internal/pkg/xcache"
	"github.com/looplj/approvalhub/internal/scopes"
	"github.com/looplj/approvalhub/internal/server/biz"
	"github.com/looplj/approvalhub/internal/server/db"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testHandlers struct {
	Auth     *AuthHandlers
	System   *SystemHandlers
	Users    *UserHandlers
	Keys     *APIKeyHandlers
	Approval *ApprovalHandlers
	Grants   *GrantHandlers

	UserService       *biz.UserService
	AuthService       *biz.AuthService
	SystemService     *biz.SystemService
	PermissionService *biz.PermissionService
	Resolver          *scopes.Resolver
}

func newTestHandlers(t *testing.T) *testHandlers {
	t.Helper()

	d, err := db.New(db.Config{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, d.Close())
	})

	cacheConfig := xcache.Config{Mode: xcache.ModeMemory}

	system := biz.NewSystemService(biz.SystemServiceParams{CacheConfig: cacheConfig, DB: d})
	users := biz.NewUserService(biz.UserServiceParams{CacheConfig: cacheConfig, DB: d})
	keys := biz.NewAPIKeyService(biz.APIKeyServiceParams{CacheConfig: cacheConfig, UserService: users, DB: d})
	auth := biz.NewAuthService(biz.AuthServiceParams{
		SystemService: system,
		APIKeyService: keys,
		UserService:   users,
		DB:            d,
	})
	approvals := biz.NewApprovalService(biz.ApprovalServiceParams{DB: d})

	permissions, err := biz.NewPermissionService(biz.PermissionServiceParams{
		Config: biz.PermissionsConfig{Backend: "sql"},
		DB:     d,
		FS:     afero.NewMemMapFs(),
	})
	require.NoError(t, err)

	versions := biz.NewVersionService(biz.VersionServiceParams{Client: httpclient.NewClient()})

	return &testHandlers{
		Auth:     NewAuthHandlers(AuthHandlersParams{AuthService: auth}),
		System:   NewSystemHandlers(SystemHandlersParams{SystemService: system, VersionService: versions}),
		Users:    NewUserHandlers(UserHandlersParams{UserService: users}),
		Keys:     NewAPIKeyHandlers(APIKeyHandlersParams{APIKeyService: keys}),
		Approval: NewApprovalHandlers(ApprovalHandlersParams{ApprovalService: approvals}),
		Grants:   NewGrantHandlers(GrantHandlersParams{PermissionService: permissions}),

		UserService:       users,
		AuthService:       auth,
		SystemService:     system,
		PermissionService: permissions,
		Resolver:          biz.NewScopeResolver(permissions),
	}
}

func (h *testHandlers) createUser(t *testing.T, email string) *biz.User {
	t.Helper()

	u, err := h.UserService.CreateUser(context.Background(), biz.CreateUserInput{
		Email:    email,
		Password: "password-123",
		Name:     "Test User",
	})
	require.NoError(t, err)

	return u
}

// withIdentity returns gin middleware placing the user's identity on
// the request context, standing in for the auth middleware.
func withIdentity(t *testing.T, u *biz.User) gin.HandlerFunc {
	t.Helper()

	return func(c *gin.Context) {
		ctx, err := authz.WithIdentity(c.Request.Context(), u.Identity())
		require.NoError(t, err)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// withScope returns gin middleware attaching the user's resolved scope
// filter, standing in for the route's policy chain.
func (h *testHandlers) withScope(t *testing.T, u *biz.User, action scopes.ActionKey, field string) gin.HandlerFunc {
	t.Helper()

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		ident, ok := authz.GetIdentity(ctx)
		require.True(t, ok)

		scope, err := h.Resolver.Resolve(ctx, ident, action)
		require.NoError(t, err)

		binding, err := scopes.NewFieldBinding(field, "")
		require.NoError(t, err)

		ctx = contexts.WithScopeFilter(ctx, &scopes.ScopeFilter{Binding: binding, Scope: scope})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}

		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

	return out
}
