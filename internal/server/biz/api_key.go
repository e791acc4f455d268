package biz

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/pkg/xcache"
	"github.com/looplj/approvalhub/internal/pkg/xtime"
	"github.com/looplj/approvalhub/internal/server/db"
)

type APIKeyServiceParams struct {
	fx.In

	CacheConfig xcache.Config
	UserService *UserService
	DB          *db.DB
}

type APIKeyService struct {
	*AbstractService

	UserService *UserService
	APIKeyCache xcache.Cache[APIKey]
}

func NewAPIKeyService(params APIKeyServiceParams) *APIKeyService {
	return &APIKeyService{
		AbstractService: &AbstractService{
			db: params.DB,
		},
		UserService: params.UserService,
		APIKeyCache: xcache.NewFromConfig[APIKey](params.CacheConfig),
	}
}

// GenerateAPIKey generates a new API key with aph- prefix.
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, 32)

	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return "aph-" + hex.EncodeToString(bytes), nil
}

// CreateAPIKey creates a new API key for a user.
func (s *APIKeyService) CreateAPIKey(ctx context.Context, userID int, name string) (*APIKey, error) {
	token, err := GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}

	now := xtime.UTCNow()

	query, args := s.builder().
		Insert("api_keys").
		Columns("user_id", "name", "token", "status", "created_at", "updated_at").
		Values(userID, name, token, APIKeyStatusEnabled, now, now).
		Query()

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to create API key: %w", err)
	}

	return s.getAPIKeyRow(ctx, token)
}

// GetAPIKey returns the key with its owner loaded. The key row is
// cached; the owner is fetched per call so status and attribute changes
// take effect immediately.
func (s *APIKeyService) GetAPIKey(ctx context.Context, key string) (*APIKey, error) {
	cacheKey := buildAPIKeyCacheKey(key)

	apiKey, err := s.APIKeyCache.Get(ctx, cacheKey)
	if err != nil || apiKey.Token != key {
		row, err := s.getAPIKeyRow(ctx, key)
		if err != nil {
			return nil, err
		}

		if err := s.APIKeyCache.Set(ctx, cacheKey, *row); err != nil {
			log.Warn(ctx, "failed to cache api key", log.Cause(err))
		}

		apiKey = *row
	}

	// DO NOT CACHE USER
	user, err := s.UserService.GetUserByID(ctx, apiKey.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get api key owner: %w", err)
	}

	apiKey.User = user

	return &apiKey, nil
}

// ListAPIKeys returns all keys belonging to the user.
func (s *APIKeyService) ListAPIKeys(ctx context.Context, userID int) ([]*APIKey, error) {
	sel := s.builder().
		Select(apiKeyColumns()...).
		From(entsql.Table("api_keys")).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Asc("id"))

	rows, err := s.db.Query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey

	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}

		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}

	return keys, nil
}

// UpdateAPIKeyStatus enables or disables a key and drops it from the
// cache.
func (s *APIKeyService) UpdateAPIKeyStatus(ctx context.Context, id int, status APIKeyStatus) (*APIKey, error) {
	sel := s.builder().
		Select(apiKeyColumns()...).
		From(entsql.Table("api_keys")).
		Where(entsql.EQ("id", id))

	key, err := scanAPIKey(s.db.QueryRow(ctx, sel))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("api key %d: %w", id, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	query, args := s.builder().
		Update("api_keys").
		Set("status", status).
		Set("updated_at", xtime.UTCNow()).
		Where(entsql.EQ("id", id)).
		Query()

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update api key status: %w", err)
	}

	s.invalidateAPIKeyCache(ctx, key.Token)

	return s.getAPIKeyRow(ctx, key.Token)
}

func (s *APIKeyService) getAPIKeyRow(ctx context.Context, token string) (*APIKey, error) {
	sel := s.builder().
		Select(apiKeyColumns()...).
		From(entsql.Table("api_keys")).
		Where(entsql.EQ("token", token))

	key, err := scanAPIKey(s.db.QueryRow(ctx, sel))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("api key: %w", ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return key, nil
}

func buildAPIKeyCacheKey(key string) string {
	return "api_key:" + fmt.Sprintf("%d", xxhash.Sum64String(key))
}

func (s *APIKeyService) invalidateAPIKeyCache(ctx context.Context, key string) {
	_ = s.APIKeyCache.Delete(ctx, buildAPIKeyCacheKey(key))
}
