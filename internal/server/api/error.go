package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/approvalhub/internal/objects"
	"github.com/looplj/approvalhub/internal/server/biz"
)

// JSONError returns a JSON error response and adds the error to gin context for access logging.
func JSONError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.JSON(status, objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(status),
			Message: err.Error(),
		},
	})
}

// JSONServiceError maps service sentinel errors onto response codes.
// Rows outside the caller's scope already read as not found at the
// service layer, so ErrNotFound covers both absence and masking.
func JSONServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrNotFound):
		JSONError(c, http.StatusNotFound, errors.New("Not Found"))
	case errors.Is(err, biz.ErrAlreadyDecided):
		JSONError(c, http.StatusConflict, errors.New("Approval already decided"))
	case errors.Is(err, biz.ErrInvalidDecision):
		JSONError(c, http.StatusBadRequest, errors.New("Invalid decision"))
	case errors.Is(err, biz.ErrInvalidGrant):
		JSONError(c, http.StatusBadRequest, errors.New("Grant requires subject, relation and object"))
	case errors.Is(err, biz.ErrAlreadyInitialized):
		JSONError(c, http.StatusConflict, errors.New("System already initialized"))
	case errors.Is(err, biz.ErrReadOnlyBackend):
		JSONError(c, http.StatusBadRequest, errors.New("Grant backend is read-only"))
	default:
		_ = c.Error(err)
		JSONError(c, http.StatusInternalServerError, errors.New("Internal server error"))
	}
}
