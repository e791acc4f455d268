package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/server/biz"
)

type AuditHandlersParams struct {
	fx.In

	AuditService *biz.AuditService
}

func NewAuditHandlers(params AuditHandlersParams) *AuditHandlers {
	return &AuditHandlers{
		AuditService: params.AuditService,
	}
}

type AuditHandlers struct {
	AuditService *biz.AuditService
}

// RecentEntries returns the newest retained audit entries, newest first.
// Owner only. This reads the in-memory tail, not the JSONL file, so it
// only covers what this instance recorded since it started.
func (h *AuditHandlers) RecentEntries(c *gin.Context) {
	ctx := c.Request.Context()

	if err := authz.RequireOwner(ctx); err != nil {
		JSONError(c, http.StatusForbidden, errors.New("Forbidden"))
		return
	}

	limit := 0

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			JSONError(c, http.StatusBadRequest, errors.New("Invalid limit"))
			return
		}

		limit = parsed
	}

	c.JSON(http.StatusOK, gin.H{"entries": h.AuditService.RecentEntries(limit)})
}
