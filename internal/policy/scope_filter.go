package policy

import (
	"context"
	"fmt"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/contexts"
	"github.com/looplj/approvalhub/internal/scopes"
)

// ScopeFilterOptions configures a scope filter policy for one route.
type ScopeFilterOptions struct {
	// Action is the action key the route performs. It must be
	// registered; unknown keys fail at construction, not at request
	// time.
	Action scopes.ActionKey

	// Field is the entity column the resolved scope constrains,
	// e.g. "requester_guid".
	Field string

	// UserField is the identity attribute whose values populate the
	// scope. Defaults to "guid".
	UserField string

	// Error overrides the denial shape for this route. Routes that
	// mask resource existence set {404, "Not Found"}. When nil,
	// missing identity denies with 401 and an empty scope with 403.
	Error *ErrorSpec
}

type scopeFilterPolicy struct {
	name     string
	resolver *scopes.Resolver
	action   scopes.ActionKey
	binding  scopes.FieldBinding
	override *ErrorSpec
}

// ScopeFilter builds the policy that resolves the caller's scope for
// opts.Action and attaches the resulting row filter to the request
// context. Configuration errors (unknown action, empty field) surface
// here so a misconfigured route fails during startup.
func ScopeFilter(resolver *scopes.Resolver, opts ScopeFilterOptions) (Policy, error) {
	if resolver == nil {
		return nil, fmt.Errorf("scope filter: resolver is required")
	}

	if opts.Action == "" {
		return nil, fmt.Errorf("scope filter: action is required")
	}

	if _, ok := resolver.Registry().Lookup(opts.Action); !ok {
		return nil, fmt.Errorf("scope filter: %w: %q", scopes.ErrUnknownActionKey, opts.Action)
	}

	binding, err := scopes.NewFieldBinding(opts.Field, opts.UserField)
	if err != nil {
		return nil, fmt.Errorf("scope filter for %q: %w", opts.Action, err)
	}

	return &scopeFilterPolicy{
		name:     "scope_filter:" + string(opts.Action),
		resolver: resolver,
		action:   opts.Action,
		binding:  binding,
		override: opts.Error,
	}, nil
}

// MustScopeFilter is ScopeFilter that panics on configuration errors.
// Route tables use it so a bad entry aborts startup.
func MustScopeFilter(resolver *scopes.Resolver, opts ScopeFilterOptions) Policy {
	p, err := ScopeFilter(resolver, opts)
	if err != nil {
		panic(err)
	}

	return p
}

func (p *scopeFilterPolicy) Name() string {
	return p.name
}

// Evaluate resolves the caller's scope and attaches the row filter.
// Requests without an identity are denied before the resolver runs.
// Resolver failures are returned as errors so the caller surfaces a
// server fault instead of a denial. An empty scope denies.
func (p *scopeFilterPolicy) Evaluate(ctx context.Context) (Outcome, error) {
	ident, ok := authz.GetIdentity(ctx)
	if !ok {
		return Deny(p.denialOr(Unauthorized)), nil
	}

	scope, err := p.resolver.Resolve(ctx, ident, p.action)
	if err != nil {
		return Outcome{}, err
	}

	if scope.IsEmpty() {
		return Deny(p.denialOr(Forbidden)), nil
	}

	filter := &scopes.ScopeFilter{Binding: p.binding, Scope: scope}

	return Continue(contexts.WithScopeFilter(ctx, filter)), nil
}

func (p *scopeFilterPolicy) denialOr(def ErrorSpec) ErrorSpec {
	if p.override != nil {
		return *p.override
	}

	return def
}
