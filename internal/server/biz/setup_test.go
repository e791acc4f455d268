package biz

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/contexts"
	"github.com/looplj/approvalhub/internal/objects"
	"github.com/looplj/approvalhub/internal/pkg/xcache"
	"github.com/looplj/approvalhub/internal/scopes"
	"github.com/looplj/approvalhub/internal/server/db"
)

type testEnv struct {
	DB          *db.DB
	System      *SystemService
	Users       *UserService
	Keys        *APIKeyService
	Auth        *AuthService
	Permissions *PermissionService
	Approvals   *ApprovalService
	Resolver    *scopes.Resolver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	d, err := db.New(db.Config{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, d.Close())
	})

	cacheConfig := xcache.Config{Mode: xcache.ModeMemory}

	system := NewSystemService(SystemServiceParams{CacheConfig: cacheConfig, DB: d})
	users := NewUserService(UserServiceParams{CacheConfig: cacheConfig, DB: d})
	keys := NewAPIKeyService(APIKeyServiceParams{CacheConfig: cacheConfig, UserService: users, DB: d})
	auth := NewAuthService(AuthServiceParams{
		SystemService: system,
		APIKeyService: keys,
		UserService:   users,
		DB:            d,
	})

	permissions, err := NewPermissionService(PermissionServiceParams{
		Config: PermissionsConfig{Backend: "sql"},
		DB:     d,
		FS:     afero.NewMemMapFs(),
	})
	require.NoError(t, err)

	return &testEnv{
		DB:          d,
		System:      system,
		Users:       users,
		Keys:        keys,
		Auth:        auth,
		Permissions: permissions,
		Approvals:   NewApprovalService(ApprovalServiceParams{DB: d}),
		Resolver:    NewScopeResolver(permissions),
	}
}

func (env *testEnv) createUser(t *testing.T, email, name string) *User {
	t.Helper()

	u, err := env.Users.CreateUser(context.Background(), CreateUserInput{
		Email:    email,
		Password: "password-123",
		Name:     name,
	})
	require.NoError(t, err)

	return u
}

func (env *testEnv) grant(t *testing.T, subject, relation, object string) {
	t.Helper()

	ctx := authz.NewSystemContext(context.Background())
	err := env.Permissions.Grant(ctx, objects.GrantInfo{
		SubjectGUID: subject,
		Relation:    relation,
		ObjectGUID:  object,
	})
	require.NoError(t, err)
}

func userContext(t *testing.T, u *User) context.Context {
	t.Helper()

	ctx, err := authz.WithIdentity(context.Background(), u.Identity())
	require.NoError(t, err)

	return ctx
}

// scopedContext resolves the user's scope for the action and attaches
// the filter the policy layer would attach.
func (env *testEnv) scopedContext(t *testing.T, u *User, action scopes.ActionKey, field string) context.Context {
	t.Helper()

	ctx := userContext(t, u)

	ident, ok := authz.GetIdentity(ctx)
	require.True(t, ok)

	scope, err := env.Resolver.Resolve(ctx, ident, action)
	require.NoError(t, err)

	binding, err := scopes.NewFieldBinding(field, "")
	require.NoError(t, err)

	return contexts.WithScopeFilter(ctx, &scopes.ScopeFilter{Binding: binding, Scope: scope})
}
