// Package policy implements the per-route enforcement chain. A chain
// runs before the handler: every policy either lets the request
// continue (possibly enriching the request context) or denies it with
// a configured error shape. Denials are terminal values; infrastructure
// faults travel as errors and never turn into denials.
package policy

import (
	"context"
	"net/http"

	"github.com/looplj/approvalhub/internal/authz"
)

// ErrorSpec is the denial shape a route responds with. Routes that must
// mask existence configure {404, "Not Found"} instead of the default 403.
type ErrorSpec struct {
	Status  int    `conf:"status" yaml:"status" json:"status"`
	Message string `conf:"message" yaml:"message" json:"message"`
}

// Default denial shapes.
var (
	Unauthorized = ErrorSpec{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	Forbidden    = ErrorSpec{Status: http.StatusForbidden, Message: "Forbidden"}
	NotFound     = ErrorSpec{Status: http.StatusNotFound, Message: "Not Found"}
)

// Policy is one element of an enforcement chain.
type Policy interface {
	Name() string
	// Evaluate decides the request. The error return is reserved for
	// infrastructure faults (resolver outage, timeout); a denial is an
	// Outcome, not an error.
	Evaluate(ctx context.Context) (Outcome, error)
}

// Outcome is the result of evaluating a policy: continue or deny.
type Outcome struct {
	denied bool
	deny   ErrorSpec
	policy string
	ctx    context.Context
}

// Continue lets the request proceed, carrying the possibly enriched context.
func Continue(ctx context.Context) Outcome {
	return Outcome{ctx: ctx}
}

// Deny stops the request with the given error shape.
func Deny(spec ErrorSpec) Outcome {
	return Outcome{denied: true, deny: spec}
}

// Denied reports whether the outcome stops the request.
func (o Outcome) Denied() bool {
	return o.denied
}

// Denial returns the error shape of a denied outcome.
func (o Outcome) Denial() ErrorSpec {
	return o.deny
}

// Policy names the policy that produced a denial.
func (o Outcome) Policy() string {
	return o.policy
}

// Context returns the request context carried by a continue outcome,
// nil for denials.
func (o Outcome) Context() context.Context {
	return o.ctx
}

// RequireIdentity returns the policy that denies unauthenticated
// requests with 401. It leads every default chain, so downstream
// policies (and their resolvers) can rely on an identity being present.
func RequireIdentity() Policy {
	return requireIdentity{}
}

type requireIdentity struct{}

func (requireIdentity) Name() string {
	return "require_identity"
}

func (requireIdentity) Evaluate(ctx context.Context) (Outcome, error) {
	if _, ok := authz.GetIdentity(ctx); !ok {
		return Deny(Unauthorized), nil
	}

	return Continue(ctx), nil
}
