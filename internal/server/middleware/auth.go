package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/objects"
	"github.com/looplj/approvalhub/internal/server/biz"
)

// WithAPIKeyAuth authenticates API requests using the default API key
// extraction config and binds the key's identity to the request context.
func WithAPIKeyAuth(auth *biz.AuthService) gin.HandlerFunc {
	return WithAPIKeyConfig(auth, nil)
}

// WithAPIKeyConfig authenticates API requests, extracting the key per the
// given config. Downstream handlers and policies read the caller identity
// from the request context; requests without a valid key never reach them.
func WithAPIKeyConfig(auth *biz.AuthService, config *APIKeyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := ExtractAPIKeyFromRequest(c.Request, config)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, objects.ErrorResponse{
				Error: objects.Error{
					Type:    http.StatusText(http.StatusUnauthorized),
					Message: err.Error(),
				},
			})

			return
		}

		apiKey, err := auth.AuthenticateAPIKey(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, biz.ErrInvalidAPIKey) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, objects.ErrorResponse{
					Error: objects.Error{
						Type:    http.StatusText(http.StatusUnauthorized),
						Message: "Invalid API key",
					},
				})
			} else {
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, objects.ErrorResponse{
					Error: objects.Error{
						Type:    http.StatusText(http.StatusInternalServerError),
						Message: "Failed to validate API key",
					},
				})
			}

			return
		}

		ctx, err := authz.WithIdentity(c.Request.Context(), apiKey.Identity())
		if err != nil {
			AbortWithError(c, http.StatusInternalServerError, err)
			return
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WithJWTAuth authenticates admin requests with a Bearer JWT and binds the
// user's identity to the request context.
func WithJWTAuth(auth *biz.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractAPIKeyFromRequest(c.Request, &APIKeyConfig{
			Headers:       []string{"Authorization"},
			RequireBearer: true,
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, objects.ErrorResponse{
				Error: objects.Error{
					Type:    http.StatusText(http.StatusUnauthorized),
					Message: err.Error(),
				},
			})

			return
		}

		user, err := auth.AuthenticateJWTToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, biz.ErrInvalidJWT) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, objects.ErrorResponse{
					Error: objects.Error{
						Type:    http.StatusText(http.StatusUnauthorized),
						Message: "Invalid token",
					},
				})
			} else {
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, objects.ErrorResponse{
					Error: objects.Error{
						Type:    http.StatusText(http.StatusInternalServerError),
						Message: "Failed to validate token",
					},
				})
			}

			return
		}

		ctx, err := authz.WithIdentity(c.Request.Context(), user.Identity())
		if err != nil {
			AbortWithError(c, http.StatusInternalServerError, err)
			return
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
