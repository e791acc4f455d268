package policy

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/looplj/approvalhub/internal/log"
)

// Decision labels for recorders.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
	DecisionFault = "fault"
)

// DecisionRecorder observes chain decisions. Implementations must not
// block the request path.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, policy string, decision string)
}

// Recorders fans a decision out to several recorders.
func Recorders(rs ...DecisionRecorder) DecisionRecorder {
	return multiRecorder(rs)
}

type multiRecorder []DecisionRecorder

func (m multiRecorder) RecordDecision(ctx context.Context, policy string, decision string) {
	for _, r := range m {
		if r != nil {
			r.RecordDecision(ctx, policy, decision)
		}
	}
}

// Handler turns a chain into gin middleware. Continue outcomes replace
// the request context with the enriched one, denials and faults go
// through the responder exactly once and abort the request. A nil
// recorder is allowed.
func Handler(chain Chain, responder Responder, recorder DecisionRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, outcome, err := chain.Evaluate(c.Request.Context())
		if err != nil {
			log.Error(ctx, "policy evaluation failed",
				log.String("path", c.FullPath()),
				log.Cause(err),
			)
			record(recorder, ctx, "", DecisionFault)
			responder.Fault(c, err)

			return
		}

		if outcome.Denied() {
			record(recorder, ctx, outcome.Policy(), DecisionDeny)
			responder.Deny(c, outcome.Denial())

			return
		}

		record(recorder, ctx, "", DecisionAllow)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func record(recorder DecisionRecorder, ctx context.Context, policy, decision string) {
	if recorder != nil {
		recorder.RecordDecision(ctx, policy, decision)
	}
}
