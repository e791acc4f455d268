package scopes

import (
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// ErrEmptyField is returned when a field binding names no entity field.
// This is a wiring mistake and surfaces at policy construction, never
// at request time.
var ErrEmptyField = errors.New("scopes: entity field must not be empty")

// DefaultIdentityAttr is the identity attribute a binding falls back to.
const DefaultIdentityAttr = "guid"

// FieldBinding declares which entity field a scope is matched against
// and which identity attribute produced the scope values.
type FieldBinding struct {
	EntityField  string
	IdentityAttr string
}

// NewFieldBinding builds a binding for the given entity field. An empty
// identityAttr defaults to "guid".
func NewFieldBinding(entityField, identityAttr string) (FieldBinding, error) {
	if entityField == "" {
		return FieldBinding{}, ErrEmptyField
	}

	if identityAttr == "" {
		identityAttr = DefaultIdentityAttr
	}

	return FieldBinding{EntityField: entityField, IdentityAttr: identityAttr}, nil
}

func (b FieldBinding) String() string {
	return fmt.Sprintf("%s=%s", b.EntityField, b.IdentityAttr)
}

// ScopeFilter is the row-level constraint an allowed scope policy
// attaches to the request context: the bound entity field must fall
// inside the resolved scope. The data layer intersects it with
// whatever query the handler issues.
type ScopeFilter struct {
	Binding FieldBinding
	Scope   Scope
}

// Apply pushes the constraint onto a selector. Unrestricted scopes add
// nothing; an empty scope fails closed.
func (f *ScopeFilter) Apply(s *entsql.Selector) {
	if f == nil || f.Scope.IsUnrestricted() {
		return
	}

	values := f.Scope.Values()
	if len(values) == 0 {
		s.Where(entsql.False())
		return
	}

	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}

	s.Where(entsql.In(s.C(f.Binding.EntityField), args...))
}

// Allows reports whether a single subject value falls inside the scope.
// Used to guard single-entity reads and mutations before any write.
func (f *ScopeFilter) Allows(value string) bool {
	if f == nil {
		return true
	}

	return f.Scope.Contains(value)
}

func (f *ScopeFilter) String() string {
	if f == nil {
		return "none"
	}

	return fmt.Sprintf("%s in %s", f.Binding.EntityField, f.Scope.String())
}
