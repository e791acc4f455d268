package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/objects"
	"github.com/looplj/approvalhub/internal/server/biz"
)

type APIKeyHandlersParams struct {
	fx.In

	APIKeyService *biz.APIKeyService
}

func NewAPIKeyHandlers(params APIKeyHandlersParams) *APIKeyHandlers {
	return &APIKeyHandlers{
		APIKeyService: params.APIKeyService,
	}
}

type APIKeyHandlers struct {
	APIKeyService *biz.APIKeyService
}

type CreateAPIKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateAPIKey issues a key for the authenticated user. The token is
// returned once, here.
func (h *APIKeyHandlers) CreateAPIKey(c *gin.Context) {
	ctx := c.Request.Context()

	ident, err := authz.RequireIdentity(ctx)
	if err != nil {
		JSONError(c, http.StatusUnauthorized, errors.New("Unauthorized"))
		return
	}

	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid request format"))
		return
	}

	key, err := h.APIKeyService.CreateAPIKey(ctx, ident.ID, req.Name)
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, biz.ConvertAPIKeyToInfo(key, true))
}

// ListAPIKeys returns the caller's keys, tokens omitted.
func (h *APIKeyHandlers) ListAPIKeys(c *gin.Context) {
	ctx := c.Request.Context()

	ident, err := authz.RequireIdentity(ctx)
	if err != nil {
		JSONError(c, http.StatusUnauthorized, errors.New("Unauthorized"))
		return
	}

	keys, err := h.APIKeyService.ListAPIKeys(ctx, ident.ID)
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	infos := lo.Map(keys, func(key *biz.APIKey, _ int) *objects.APIKeyInfo {
		return biz.ConvertAPIKeyToInfo(key, false)
	})

	c.JSON(http.StatusOK, gin.H{"apiKeys": infos})
}

type UpdateAPIKeyStatusRequest struct {
	Status biz.APIKeyStatus `json:"status" binding:"required,oneof=enabled disabled"`
}

// UpdateAPIKeyStatus enables or disables one of the caller's keys.
func (h *APIKeyHandlers) UpdateAPIKeyStatus(c *gin.Context) {
	ctx := c.Request.Context()

	ident, err := authz.RequireIdentity(ctx)
	if err != nil {
		JSONError(c, http.StatusUnauthorized, errors.New("Unauthorized"))
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid API key id"))
		return
	}

	var req UpdateAPIKeyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid request format"))
		return
	}

	keys, err := h.APIKeyService.ListAPIKeys(ctx, ident.ID)
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	// A key may only be toggled by its owner; anything else reads as
	// absent.
	if !lo.ContainsBy(keys, func(key *biz.APIKey) bool { return key.ID == id }) {
		JSONError(c, http.StatusNotFound, errors.New("Not Found"))
		return
	}

	updated, err := h.APIKeyService.UpdateAPIKeyStatus(ctx, id, req.Status)
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, biz.ConvertAPIKeyToInfo(updated, false))
}
