package biz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/build"
	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/pkg/xcache"
	"github.com/looplj/approvalhub/internal/pkg/xtime"
	"github.com/looplj/approvalhub/internal/server/db"
)

const (
	// SystemKeyInitialized is the key used to store the initialized flag in the settings table.
	SystemKeyInitialized = "system_initialized"

	// SystemKeyVersion is the key used to store the version in the settings table.
	SystemKeyVersion = "system_version"

	// SystemKeySecretKey is the key used to store the JWT secret key in the settings table.
	//
	//nolint:gosec // Not a secret.
	SystemKeySecretKey = "system_jwt_secret_key"
)

type SystemServiceParams struct {
	fx.In

	CacheConfig xcache.Config
	DB          *db.DB
}

func NewSystemService(params SystemServiceParams) *SystemService {
	return &SystemService{
		AbstractService: &AbstractService{
			db: params.DB,
		},
		Cache: xcache.NewFromConfig[Setting](params.CacheConfig),
	}
}

type SystemService struct {
	*AbstractService

	Cache xcache.Cache[Setting]
}

// IsInitialized reports whether first-boot initialization completed.
func (s *SystemService) IsInitialized(ctx context.Context) (bool, error) {
	value, err := s.getSystemValue(ctx, SystemKeyInitialized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	return strings.EqualFold(value, "true"), nil
}

type InitializeSystemParams struct {
	OwnerEmail    string
	OwnerPassword string
	OwnerName     string
}

// Initialize creates the owner account, generates the JWT secret and
// flips the initialized flag, all in one transaction.
func (s *SystemService) Initialize(ctx context.Context, params *InitializeSystemParams) error {
	isInitialized, err := s.IsInitialized(ctx)
	if err != nil {
		return fmt.Errorf("failed to check initialization status: %w", err)
	}

	if isInitialized {
		return ErrAlreadyInitialized
	}

	secretKey, err := GenerateSecretKey()
	if err != nil {
		return fmt.Errorf("failed to generate secret key: %w", err)
	}

	hashedPassword, err := HashPassword(params.OwnerPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	ownerGUID := uuid.NewString()
	now := xtime.UTCNow()

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		query, args := s.builder().
			Insert("users").
			Columns("guid", "email", "password", "name", "is_owner", "status", "created_at", "updated_at").
			Values(ownerGUID, params.OwnerEmail, hashedPassword, params.OwnerName, true, UserStatusActivated, now, now).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to create owner user: %w", err)
		}

		for name, value := range map[string]string{
			SystemKeySecretKey:   secretKey,
			SystemKeyVersion:     build.Version,
			SystemKeyInitialized: "true",
		} {
			if err := s.upsertSetting(ctx, tx, name, value); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Info(ctx, "system initialized", log.String("owner_guid", ownerGUID))

	return nil
}

// SecretKey returns the JWT signing secret.
func (s *SystemService) SecretKey(ctx context.Context) (string, error) {
	value, err := s.getSystemValue(ctx, SystemKeySecretKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("secret key not found, system may not be initialized")
		}

		return "", fmt.Errorf("failed to get secret key: %w", err)
	}

	return value, nil
}

func (s *SystemService) SetSecretKey(ctx context.Context, secretKey string) error {
	return s.setSystemValue(ctx, SystemKeySecretKey, secretKey)
}

// Version returns the build version recorded at initialization or the
// last upgrade.
func (s *SystemService) Version(ctx context.Context) (string, error) {
	return s.getSystemValue(ctx, SystemKeyVersion)
}

func (s *SystemService) SetVersion(ctx context.Context, version string) error {
	return s.setSystemValue(ctx, SystemKeyVersion, version)
}

func (s *SystemService) getSystemValue(ctx context.Context, name string) (string, error) {
	cacheKey := "system:" + name
	if v, err := s.Cache.Get(ctx, cacheKey); err == nil {
		return v.Value, nil
	}

	sel := s.builder().
		Select("id", "name", "value", "created_at", "updated_at").
		From(entsql.Table("system_settings")).
		Where(entsql.EQ("name", name))

	var setting Setting

	err := s.db.QueryRow(ctx, sel).
		Scan(&setting.ID, &setting.Name, &setting.Value, &setting.CreatedAt, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("setting %q: %w", name, ErrNotFound)
		}

		return "", fmt.Errorf("failed to get system value: %w", err)
	}

	_ = s.Cache.Set(ctx, cacheKey, setting)

	return setting.Value, nil
}

func (s *SystemService) setSystemValue(ctx context.Context, name, value string) error {
	if err := s.upsertSetting(ctx, s.db.DB(), name, value); err != nil {
		return err
	}

	s.invalidateSetting(ctx, name)

	return nil
}

func (s *SystemService) upsertSetting(ctx context.Context, exec execer, name, value string) error {
	now := xtime.UTCNow()

	query, args := s.builder().
		Insert("system_settings").
		Columns("name", "value", "created_at", "updated_at").
		Values(name, value, now, now).
		OnConflict(
			entsql.ConflictColumns("name"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Set("value", value)
				u.Set("updated_at", now)
			}),
		).
		Query()

	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to store system setting %q: %w", name, err)
	}

	return nil
}

func (s *SystemService) invalidateSetting(ctx context.Context, name string) {
	if err := s.Cache.Delete(ctx, "system:"+name); err != nil {
		log.Warn(ctx, "failed to invalidate setting cache", log.String("name", name), log.Cause(err))
	}
}
