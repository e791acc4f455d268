package scopes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/metrics"
)

// Store is the permission backend a resolver expands relations through.
type Store interface {
	// RelatedSubjects returns the subject guids related to the caller
	// through the named relation.
	RelatedSubjects(ctx context.Context, subjectGUID, relation string) ([]string, error)
}

// ErrUnknownActionKey is returned when a policy asks for an action key
// that was never registered. Startup validation makes this unreachable
// for declared routes; hitting it at runtime is a programming error,
// not a denial.
var ErrUnknownActionKey = errors.New("scopes: unknown action key")

// ResolutionError wraps a permission store failure, including timeouts.
// It marks an infrastructure fault: callers must surface it as an
// internal error, never convert it into a denial.
type ResolutionError struct {
	Action ActionKey
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("scopes: resolve %q: %v", e.Action, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Resolver resolves caller scopes against the registry and the
// permission store. It holds no per-request state and never caches
// resolved scopes; every request observes the current grants.
type Resolver struct {
	registry *Registry
	store    Store
}

func NewResolver(registry *Registry, store Store) *Resolver {
	return &Resolver{registry: registry, store: store}
}

// Registry exposes the closed action table, e.g. for startup validation.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Resolve returns the scope of the identity for the action.
func (r *Resolver) Resolve(ctx context.Context, ident *authz.Identity, key ActionKey) (Scope, error) {
	action, ok := r.registry.Lookup(key)
	if !ok {
		return Scope{}, fmt.Errorf("%w: %q", ErrUnknownActionKey, key)
	}

	if ident == nil {
		return Scope{}, &ResolutionError{Action: key, Err: authz.ErrNoIdentity}
	}

	start := time.Now()
	scope, err := action.Rule.resolve(ctx, r.store, ident)
	metrics.RecordResolution(ctx, string(key), time.Since(start), err)

	if err != nil {
		return Scope{}, &ResolutionError{Action: key, Err: err}
	}

	log.Debug(ctx, "scope resolved",
		log.String("identity", ident.String()),
		log.String("action", string(key)),
		log.String("scope", scope.String()),
	)

	return scope, nil
}
