package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/build"
	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/server/biz"
)

type SystemHandlersParams struct {
	fx.In

	SystemService  *biz.SystemService
	VersionService *biz.VersionService
}

func NewSystemHandlers(params SystemHandlersParams) *SystemHandlers {
	return &SystemHandlers{
		SystemService:  params.SystemService,
		VersionService: params.VersionService,
	}
}

type SystemHandlers struct {
	SystemService  *biz.SystemService
	VersionService *biz.VersionService
}

// Health responds to liveness probes. No authentication.
func (h *SystemHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetBuildInfo returns version, commit and runtime details.
func (h *SystemHandlers) GetBuildInfo(c *gin.Context) {
	c.JSON(http.StatusOK, build.GetBuildInfo())
}

type SystemStatusResponse struct {
	Initialized bool   `json:"initialized"`
	Version     string `json:"version"`
}

// GetSystemStatus reports whether the system has been initialized.
// Exposed without authentication so a fresh deployment can find out it
// needs initializing.
func (h *SystemHandlers) GetSystemStatus(c *gin.Context) {
	ctx := c.Request.Context()

	initialized, err := h.SystemService.IsInitialized(ctx)
	if err != nil {
		log.Error(ctx, "failed to read system status", log.Cause(err))
		JSONError(c, http.StatusInternalServerError, errors.New("Internal server error"))

		return
	}

	c.JSON(http.StatusOK, SystemStatusResponse{
		Initialized: initialized,
		Version:     build.Version,
	})
}

type InitializeSystemRequest struct {
	OwnerEmail    string `json:"ownerEmail"    binding:"required,email"`
	OwnerPassword string `json:"ownerPassword" binding:"required,min=8"`
	OwnerName     string `json:"ownerName"`
}

// InitializeSystem creates the owner account and the signing secret.
// Works exactly once; a second call answers conflict.
func (h *SystemHandlers) InitializeSystem(c *gin.Context) {
	var (
		ctx = c.Request.Context()
		req InitializeSystemRequest
	)

	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid request format"))
		return
	}

	err := h.SystemService.Initialize(ctx, &biz.InitializeSystemParams{
		OwnerEmail:    req.OwnerEmail,
		OwnerPassword: req.OwnerPassword,
		OwnerName:     req.OwnerName,
	})
	if err != nil {
		JSONServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"initialized": true})
}

// CheckForUpdate asks the releases API whether a newer stable version
// exists.
func (h *SystemHandlers) CheckForUpdate(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.VersionService.CheckForUpdate(ctx)
	if err != nil {
		log.Error(ctx, "version check failed", log.Cause(err))
		JSONError(c, http.StatusBadGateway, errors.New("Version check failed"))

		return
	}

	c.JSON(http.StatusOK, result)
}
