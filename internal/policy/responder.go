package policy

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/approvalhub/internal/objects"
)

// Responder writes the HTTP response for a decision that stops the
// request. Exactly one responder call happens per stopped request.
type Responder interface {
	Deny(c *gin.Context, spec ErrorSpec)
	Fault(c *gin.Context, err error)
}

// JSONResponder writes denials and faults as the standard error
// envelope.
type JSONResponder struct{}

func (JSONResponder) Deny(c *gin.Context, spec ErrorSpec) {
	_ = c.Error(errors.New(spec.Message))
	c.AbortWithStatusJSON(spec.Status, objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(spec.Status),
			Message: spec.Message,
		},
	})
}

// Fault answers 500 with a generic message. The cause is attached to
// the gin context for the access log but never leaks to the client.
func (JSONResponder) Fault(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(http.StatusInternalServerError),
			Message: "internal error",
		},
	})
}
