package biz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/objects"
	"github.com/looplj/approvalhub/internal/pkg/watcher"
	"github.com/looplj/approvalhub/internal/pkg/xcache"
	"github.com/looplj/approvalhub/internal/pkg/xtime"
	"github.com/looplj/approvalhub/internal/server/db"
)

// userInvalidationChannel is the pubsub channel instances share when the
// invalidation bus runs on Redis.
const userInvalidationChannel = "approvalhub:users:invalidate"

type UserServiceParams struct {
	fx.In

	CacheConfig   xcache.Config
	DB            *db.DB
	Invalidations watcher.Notifier[int] `optional:"true"`
}

type UserService struct {
	*AbstractService

	UserCache xcache.Cache[User]

	invalidations watcher.Notifier[int]
	stopWatch     func()
	watchDone     chan struct{}
}

func NewUserService(params UserServiceParams) *UserService {
	invalidations := params.Invalidations
	if invalidations == nil {
		invalidations = watcher.NewMemoryWatcher[int](watcher.MemoryWatcherOptions{Buffer: 16})
	}

	return &UserService{
		AbstractService: &AbstractService{
			db: params.DB,
		},
		UserCache:     xcache.NewFromConfig[User](params.CacheConfig),
		invalidations: invalidations,
	}
}

// NewUserInvalidations builds the bus user mutations broadcast on. Every
// instance evicts its cached copy when any instance changes a user, which
// keeps a memory-mode cache from serving stale status after a deactivation
// lands elsewhere.
func NewUserInvalidations(cfg xcache.Config) (watcher.Notifier[int], error) {
	return watcher.NewWatcherFromConfig[int](cfg.Invalidation, watcher.WatcherFromConfigOptions{
		RedisChannel: userInvalidationChannel,
		Buffer:       16,
	})
}

// Start subscribes to the invalidation bus and evicts users as signals arrive.
func (s *UserService) Start(ctx context.Context) error {
	events, stop := s.invalidations.Watch()
	s.stopWatch = stop
	s.watchDone = make(chan struct{})

	go func() {
		defer close(s.watchDone)

		for id := range events {
			_ = s.UserCache.Delete(context.Background(), buildUserCacheKey(id))
		}
	}()

	return nil
}

// Stop unsubscribes from the invalidation bus and waits for the watch
// goroutine to drain.
func (s *UserService) Stop(ctx context.Context) error {
	if s.stopWatch != nil {
		s.stopWatch()
	}

	if s.watchDone != nil {
		select {
		case <-s.watchDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

type CreateUserInput struct {
	Email      string            `json:"email" binding:"required,email"`
	Password   string            `json:"password" binding:"required"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
}

// CreateUser creates a new user with hashed password.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	hashedPassword, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	attrs, err := encodeAttributes(input.Attributes)
	if err != nil {
		return nil, err
	}

	guid := uuid.NewString()
	now := xtime.UTCNow()

	query, args := s.builder().
		Insert("users").
		Columns("guid", "email", "password", "name", "is_owner", "status", "attributes", "created_at", "updated_at").
		Values(guid, input.Email, hashedPassword, input.Name, false, UserStatusActivated, attrs, now, now).
		Query()

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.GetUserByGUID(ctx, guid)
}

type UpdateUserInput struct {
	Email      *string           `json:"email"`
	Password   *string           `json:"password"`
	Name       *string           `json:"name"`
	Attributes map[string]string `json:"attributes"`
}

// UpdateUser updates an existing user and drops it from the cache.
func (s *UserService) UpdateUser(ctx context.Context, id int, input UpdateUserInput) (*User, error) {
	update := s.builder().
		Update("users").
		Set("updated_at", xtime.UTCNow()).
		Where(entsql.EQ("id", id))

	if input.Email != nil {
		update.Set("email", *input.Email)
	}

	if input.Name != nil {
		update.Set("name", *input.Name)
	}

	if input.Password != nil {
		hashedPassword, err := HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}

		update.Set("password", hashedPassword)
	}

	if input.Attributes != nil {
		attrs, err := encodeAttributes(input.Attributes)
		if err != nil {
			return nil, err
		}

		update.Set("attributes", attrs)
	}

	query, args := update.Query()
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.invalidateUserCache(ctx, id)

	return s.GetUserByID(ctx, id)
}

// UpdateUserStatus activates or deactivates a user.
func (s *UserService) UpdateUserStatus(ctx context.Context, id int, status UserStatus) (*User, error) {
	query, args := s.builder().
		Update("users").
		Set("status", status).
		Set("updated_at", xtime.UTCNow()).
		Where(entsql.EQ("id", id)).
		Query()

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update user status: %w", err)
	}

	s.invalidateUserCache(ctx, id)

	return s.GetUserByID(ctx, id)
}

// GetUserByID returns the user, served from the cache when possible.
func (s *UserService) GetUserByID(ctx context.Context, id int) (*User, error) {
	cacheKey := buildUserCacheKey(id)
	if user, err := s.UserCache.Get(ctx, cacheKey); err == nil {
		return &user, nil
	}

	sel := s.builder().
		Select(userColumns()...).
		From(entsql.Table("users")).
		Where(entsql.EQ("id", id))

	user, err := scanUser(s.db.QueryRow(ctx, sel))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.UserCache.Set(ctx, cacheKey, *user); err != nil {
		log.Warn(ctx, "failed to cache user", log.Cause(err))
	}

	return user, nil
}

// GetUserByGUID returns the user by its public identifier. Not cached;
// identity lookups go through GetUserByID.
func (s *UserService) GetUserByGUID(ctx context.Context, guid string) (*User, error) {
	sel := s.builder().
		Select(userColumns()...).
		From(entsql.Table("users")).
		Where(entsql.EQ("guid", guid))

	user, err := scanUser(s.db.QueryRow(ctx, sel))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", guid, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// ListUsers returns the users inside the caller's resolved scope,
// matched on the guid column.
func (s *UserService) ListUsers(ctx context.Context) ([]*objects.UserInfo, error) {
	sel := s.builder().
		Select(userColumns()...).
		From(entsql.Table("users")).
		OrderBy(entsql.Asc("id"))

	if err := applyScopeConstraint(ctx, sel); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var infos []*objects.UserInfo

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		infos = append(infos, ConvertUserToUserInfo(user))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return infos, nil
}

func buildUserCacheKey(id int) string {
	return fmt.Sprintf("user:%d", id)
}

func (s *UserService) invalidateUserCache(ctx context.Context, id int) {
	_ = s.UserCache.Delete(ctx, buildUserCacheKey(id))

	if err := s.invalidations.Notify(ctx, id); err != nil {
		log.Warn(ctx, "failed to broadcast user invalidation", log.Int("user_id", id), log.Cause(err))
	}
}
