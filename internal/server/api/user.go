package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/server/biz"
)

type UserHandlersParams struct {
	fx.In

	UserService *biz.UserService
}

func NewUserHandlers(params UserHandlersParams) *UserHandlers {
	return &UserHandlers{
		UserService: params.UserService,
	}
}

type UserHandlers struct {
	UserService *biz.UserService
}

// Me returns the authenticated caller.
func (h *UserHandlers) Me(c *gin.Context) {
	ctx := c.Request.Context()

	ident, err := authz.RequireIdentity(ctx)
	if err != nil {
		JSONError(c, http.StatusUnauthorized, errors.New("Unauthorized"))
		return
	}

	user, err := h.UserService.GetUserByGUID(ctx, ident.GUID)
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, biz.ConvertUserToUserInfo(user))
}

// ListUsers returns the users inside the caller's resolved scope. The
// scope filter is attached by the route's policy chain.
func (h *UserHandlers) ListUsers(c *gin.Context) {
	infos, err := h.UserService.ListUsers(c.Request.Context())
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": infos})
}

// CreateUser registers a new account. Owner only.
func (h *UserHandlers) CreateUser(c *gin.Context) {
	ctx := c.Request.Context()

	if err := authz.RequireOwner(ctx); err != nil {
		JSONError(c, http.StatusForbidden, errors.New("Forbidden"))
		return
	}

	var req biz.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid request format"))
		return
	}

	user, err := h.UserService.CreateUser(ctx, req)
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, biz.ConvertUserToUserInfo(user))
}

type UpdateUserStatusRequest struct {
	Status biz.UserStatus `json:"status" binding:"required,oneof=activated deactivated"`
}

// UpdateUserStatus activates or deactivates an account. Owner only.
func (h *UserHandlers) UpdateUserStatus(c *gin.Context) {
	ctx := c.Request.Context()

	if err := authz.RequireOwner(ctx); err != nil {
		JSONError(c, http.StatusForbidden, errors.New("Forbidden"))
		return
	}

	guid := c.Param("guid")

	var req UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid request format"))
		return
	}

	user, err := h.UserService.GetUserByGUID(ctx, guid)
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	updated, err := h.UserService.UpdateUserStatus(ctx, user.ID, req.Status)
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, biz.ConvertUserToUserInfo(updated))
}
