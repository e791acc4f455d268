package scopes

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/looplj/approvalhub/internal/authz"
)

// Rule resolves a caller's scope for one action. Rules are declared in
// the action table and hold no per-request state.
type Rule interface {
	resolve(ctx context.Context, store Store, ident *authz.Identity) (Scope, error)
	validate() error
}

// ConditionEnv is the expression environment a rule condition is
// evaluated against. Conditions see the caller, never the rows.
type ConditionEnv struct {
	GUID    string            `expr:"guid"`
	Email   string            `expr:"email"`
	Name    string            `expr:"name"`
	IsOwner bool              `expr:"is_owner"`
	Attrs   map[string]string `expr:"attrs"`
}

func conditionEnv(ident *authz.Identity) ConditionEnv {
	attrs := ident.Attrs
	if attrs == nil {
		attrs = map[string]string{}
	}

	return ConditionEnv{
		GUID:    ident.GUID,
		Email:   ident.Email,
		Name:    ident.Name,
		IsOwner: ident.IsOwner,
		Attrs:   attrs,
	}
}

// Self resolves to exactly the caller's own guid.
func Self() Rule {
	return selfRule{}
}

type selfRule struct{}

func (selfRule) resolve(_ context.Context, _ Store, ident *authz.Identity) (Scope, error) {
	return NewScope(ident.GUID), nil
}

func (selfRule) validate() error {
	return nil
}

// RelationOption configures a relation rule.
type RelationOption func(*relationRule)

// IncludeSelf adds the caller's own guid to the resolved scope in
// addition to the related subjects.
func IncludeSelf() RelationOption {
	return func(r *relationRule) {
		r.includeSelf = true
	}
}

// When gates the relation expansion with a condition over the caller,
// e.g. `attrs.department == "finance"`. A false condition drops the
// related subjects but keeps the self value if IncludeSelf is set.
func When(condition string) RelationOption {
	return func(r *relationRule) {
		r.when = condition
	}
}

// Relation resolves to the subjects related to the caller through the
// named relation in the permission store.
func Relation(relation string, opts ...RelationOption) Rule {
	r := &relationRule{relation: relation}

	for _, opt := range opts {
		opt(r)
	}

	if r.when != "" {
		r.prog, r.compileErr = expr.Compile(r.when, expr.Env(ConditionEnv{}), expr.AsBool())
	}

	return r
}

type relationRule struct {
	relation    string
	includeSelf bool
	when        string
	prog        *vm.Program
	compileErr  error
}

func (r *relationRule) resolve(ctx context.Context, store Store, ident *authz.Identity) (Scope, error) {
	if r.compileErr != nil {
		return Scope{}, fmt.Errorf("condition %q: %w", r.when, r.compileErr)
	}

	var values []string
	if r.includeSelf {
		values = append(values, ident.GUID)
	}

	expand := true

	if r.prog != nil {
		out, err := expr.Run(r.prog, conditionEnv(ident))
		if err != nil {
			return Scope{}, fmt.Errorf("evaluate condition %q: %w", r.when, err)
		}

		expand, _ = out.(bool)
	}

	if expand {
		subjects, err := store.RelatedSubjects(ctx, ident.GUID, r.relation)
		if err != nil {
			return Scope{}, fmt.Errorf("expand relation %q: %w", r.relation, err)
		}

		values = append(values, subjects...)
	}

	return NewScope(values...), nil
}

func (r *relationRule) validate() error {
	if r.relation == "" {
		return fmt.Errorf("relation rule with empty relation")
	}

	if r.compileErr != nil {
		return fmt.Errorf("condition %q: %w", r.when, r.compileErr)
	}

	return nil
}

// OwnerUnrestricted resolves owners (and system or test identities) to
// an unrestricted scope; everyone else falls through to next.
func OwnerUnrestricted(next Rule) Rule {
	return ownerRule{next: next}
}

type ownerRule struct {
	next Rule
}

func (r ownerRule) resolve(ctx context.Context, store Store, ident *authz.Identity) (Scope, error) {
	if ident.IsOwner || ident.IsSystem() || ident.IsTest() {
		return Unrestricted(), nil
	}

	return r.next.resolve(ctx, store, ident)
}

func (r ownerRule) validate() error {
	if r.next == nil {
		return fmt.Errorf("owner rule with no fallthrough rule")
	}

	return r.next.validate()
}
