package biz

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/server/db"
)

const (
	jwtTokenTTL = time.Hour * 24 * 7

	// Verified tokens are remembered briefly to skip signature checks
	// on request bursts. User status is still checked on every call.
	tokenCacheSize = 1024
	tokenCacheTTL  = 5 * time.Minute
)

type AuthServiceParams struct {
	fx.In

	SystemService *SystemService
	APIKeyService *APIKeyService
	UserService   *UserService
	DB            *db.DB
}

func NewAuthService(params AuthServiceParams) *AuthService {
	return &AuthService{
		AbstractService: &AbstractService{
			db: params.DB,
		},
		SystemService: params.SystemService,
		APIKeyService: params.APIKeyService,
		UserService:   params.UserService,
		tokenCache:    expirable.NewLRU[string, int](tokenCacheSize, nil, tokenCacheTTL),
	}
}

type AuthService struct {
	*AbstractService

	SystemService *SystemService
	APIKeyService *APIKeyService
	UserService   *UserService

	tokenCache *expirable.LRU[string, int]
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return hex.EncodeToString(hashedPassword), nil
}

// VerifyPassword verifies a password against a hash.
func VerifyPassword(hashedPassword, password string) error {
	decodedHashedPassword, err := hex.DecodeString(hashedPassword)
	if err != nil {
		return fmt.Errorf("failed to decode hashed password: %w", err)
	}

	return bcrypt.CompareHashAndPassword(decodedHashedPassword, []byte(password))
}

// GenerateSecretKey generates a random secret key for JWT.
func GenerateSecretKey() (string, error) {
	bytes := make([]byte, 32) // 256 bits

	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}

// GenerateJWTToken generates a JWT token for a user.
func (s *AuthService) GenerateJWTToken(ctx context.Context, user *User) (string, error) {
	secretKey, err := authz.RunWithSystemBypass(ctx, "auth-get-secret-key", func(bypassCtx context.Context) (string, error) {
		return s.SystemService.SecretKey(bypassCtx)
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(jwtTokenTTL).Unix(),
	})

	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// AuthenticateUser authenticates a user with email and password.
func (s *AuthService) AuthenticateUser(ctx context.Context, email, password string) (*User, error) {
	u, err := authz.RunWithSystemBypass(ctx, "auth-lookup", func(bypassCtx context.Context) (*User, error) {
		sel := s.builder().
			Select(userColumns()...).
			From(entsql.Table("users")).
			Where(entsql.And(
				entsql.EQ("email", email),
				entsql.EQ("status", UserStatusActivated),
			))

		return scanUser(s.db.QueryRow(bypassCtx, sel))
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invalid email or password: %w", ErrInvalidPassword)
		}

		log.Error(ctx, "failed to get user", log.Cause(err))

		return nil, ErrInternal
	}

	err = VerifyPassword(u.Password, password)
	if err != nil {
		return nil, fmt.Errorf("invalid email or password: %w", ErrInvalidPassword)
	}

	log.Debug(ctx, "user authenticated", log.Int("user_id", u.ID))

	return u, nil
}

// AuthenticateJWTToken validates a JWT token and returns the user.
func (s *AuthService) AuthenticateJWTToken(ctx context.Context, tokenString string) (*User, error) {
	userID, ok := s.tokenCache.Get(tokenString)
	if !ok {
		var err error

		userID, err = s.verifyJWTToken(ctx, tokenString)
		if err != nil {
			return nil, err
		}

		s.tokenCache.Add(tokenString, userID)
	}

	u, err := authz.RunWithSystemBypass(ctx, "auth-lookup", func(bypassCtx context.Context) (*User, error) {
		return s.UserService.GetUserByID(bypassCtx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get user: %w", ErrInvalidJWT, err)
	}

	if u.Status != UserStatusActivated {
		return nil, fmt.Errorf("%w: user not activated", ErrInvalidJWT)
	}

	return u, nil
}

func (s *AuthService) verifyJWTToken(ctx context.Context, tokenString string) (int, error) {
	secretKey, err := authz.RunWithSystemBypass(ctx, "auth-get-secret-key", func(bypassCtx context.Context) (string, error) {
		return s.SystemService.SecretKey(bypassCtx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get secret key: %w", err)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method: %v", ErrInvalidJWT, token.Header["alg"])
		}

		return []byte(secretKey), nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to parse jwt token: %w", ErrInvalidJWT, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("%w: invalid token", ErrInvalidJWT)
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid token claims", ErrInvalidJWT)
	}

	return int(userID), nil
}

// AuthenticateAPIKey validates an API key and returns it with its owner
// loaded.
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	apiKey, err := authz.RunWithSystemBypass(ctx, "auth-lookup", func(bypassCtx context.Context) (*APIKey, error) {
		return s.APIKeyService.GetAPIKey(bypassCtx, key)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("unknown api key: %w", ErrInvalidAPIKey)
		}

		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	if apiKey.Status != APIKeyStatusEnabled {
		return nil, fmt.Errorf("api key not enabled: %w", ErrInvalidAPIKey)
	}

	if apiKey.User == nil || apiKey.User.Status != UserStatusActivated {
		return nil, fmt.Errorf("api key owner not activated: %w", ErrInvalidAPIKey)
	}

	return apiKey, nil
}
