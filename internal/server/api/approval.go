package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/objects"
	"github.com/looplj/approvalhub/internal/server/biz"
)

type ApprovalHandlersParams struct {
	fx.In

	ApprovalService *biz.ApprovalService
}

func NewApprovalHandlers(params ApprovalHandlersParams) *ApprovalHandlers {
	return &ApprovalHandlers{
		ApprovalService: params.ApprovalService,
	}
}

type ApprovalHandlers struct {
	ApprovalService *biz.ApprovalService
}

// CreateApproval files a new request for the caller.
func (h *ApprovalHandlers) CreateApproval(c *gin.Context) {
	var (
		ctx = c.Request.Context()
		req objects.CreateApprovalInput
	)

	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid request format"))
		return
	}

	info, err := h.ApprovalService.CreateApproval(ctx, req)
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// ListApprovals returns the requests inside the caller's scope, newest
// first. Supports status filtering and cursor pagination via query
// parameters.
func (h *ApprovalHandlers) ListApprovals(c *gin.Context) {
	ctx := c.Request.Context()

	limit := 0

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			JSONError(c, http.StatusBadRequest, errors.New("Invalid limit"))
			return
		}

		limit = parsed
	}

	list, err := h.ApprovalService.ListApprovals(ctx, biz.ListApprovalsParams{
		Status: c.Query("status"),
		Cursor: c.Query("cursor"),
		Limit:  limit,
	})
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetApproval returns one request. Requests outside the caller's scope
// answer not found, indistinguishable from absent rows.
func (h *ApprovalHandlers) GetApproval(c *gin.Context) {
	info, err := h.ApprovalService.GetApproval(c.Request.Context(), c.Param("guid"))
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// DecideApproval approves or rejects a pending request.
func (h *ApprovalHandlers) DecideApproval(c *gin.Context) {
	var (
		ctx = c.Request.Context()
		req objects.DecideApprovalInput
	)

	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid request format"))
		return
	}

	info, err := h.ApprovalService.DecideApproval(ctx, c.Param("guid"), req)
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// CancelApproval withdraws one of the caller's own pending requests.
func (h *ApprovalHandlers) CancelApproval(c *gin.Context) {
	info, err := h.ApprovalService.CancelApproval(c.Request.Context(), c.Param("guid"))
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// GetStats returns pending and decided counts for the caller's scope.
func (h *ApprovalHandlers) GetStats(c *gin.Context) {
	stats, err := h.ApprovalService.Stats(c.Request.Context())
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
