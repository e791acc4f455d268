package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/objects"
	"github.com/looplj/approvalhub/internal/server/biz"
)

type GrantHandlersParams struct {
	fx.In

	PermissionService *biz.PermissionService
}

func NewGrantHandlers(params GrantHandlersParams) *GrantHandlers {
	return &GrantHandlers{
		PermissionService: params.PermissionService,
	}
}

// GrantHandlers manage the relation edges scope resolution expands.
// All operations are owner-only; the service enforces that, the
// handlers translate the refusal.
type GrantHandlers struct {
	PermissionService *biz.PermissionService
}

func grantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authz.ErrNoIdentity):
		JSONError(c, http.StatusUnauthorized, errors.New("Unauthorized"))
	case errors.Is(err, authz.ErrNotOwner):
		JSONError(c, http.StatusForbidden, errors.New("Forbidden"))
	default:
		JSONServiceError(c, err)
	}
}

// CreateGrant records a relation edge. Takes effect on the next
// request; grants are never cached.
func (h *GrantHandlers) CreateGrant(c *gin.Context) {
	var (
		ctx = c.Request.Context()
		req objects.GrantInfo
	)

	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid request format"))
		return
	}

	if err := h.PermissionService.Grant(ctx, req); err != nil {
		grantError(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

// DeleteGrant removes a relation edge.
func (h *GrantHandlers) DeleteGrant(c *gin.Context) {
	var (
		ctx = c.Request.Context()
		req objects.GrantInfo
	)

	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid request format"))
		return
	}

	if err := h.PermissionService.Revoke(ctx, req); err != nil {
		grantError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListGrants returns a subject's edges for one relation.
func (h *GrantHandlers) ListGrants(c *gin.Context) {
	ctx := c.Request.Context()

	subject := c.Query("subject")
	relation := c.Query("relation")

	if subject == "" || relation == "" {
		JSONError(c, http.StatusBadRequest, errors.New("subject and relation are required"))
		return
	}

	grants, err := h.PermissionService.ListGrants(ctx, subject, relation)
	if err != nil {
		grantError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"grants": grants})
}
