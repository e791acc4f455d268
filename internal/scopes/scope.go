package scopes

import (
	"fmt"
	"slices"
	"strings"
)

// Scope is the set of subject identity values a caller is permitted to
// act on for one action, resolved fresh for every request. A scope is
// either a finite value set or explicitly unrestricted; an empty set
// means the caller can see nothing, never everything.
type Scope struct {
	unrestricted bool
	values       map[string]struct{}
}

// Unrestricted returns the scope that matches every subject. It is the
// only way to express unbounded privilege; no value set, however large,
// is treated as unrestricted.
func Unrestricted() Scope {
	return Scope{unrestricted: true}
}

// NewScope builds a finite scope from the given values. Empty strings
// are dropped and duplicates collapse.
func NewScope(values ...string) Scope {
	set := make(map[string]struct{}, len(values))

	for _, v := range values {
		if v == "" {
			continue
		}

		set[v] = struct{}{}
	}

	return Scope{values: set}
}

// IsUnrestricted reports whether the scope matches every subject.
func (s Scope) IsUnrestricted() bool {
	return s.unrestricted
}

// IsEmpty reports whether the scope matches no subject at all.
func (s Scope) IsEmpty() bool {
	return !s.unrestricted && len(s.values) == 0
}

// Len returns the number of values in a finite scope, zero when unrestricted.
func (s Scope) Len() int {
	return len(s.values)
}

// Contains reports whether the scope permits the given subject value.
func (s Scope) Contains(v string) bool {
	if s.unrestricted {
		return true
	}

	_, ok := s.values[v]

	return ok
}

// Values returns the scope values as a sorted copy, nil when unrestricted.
func (s Scope) Values() []string {
	if s.unrestricted {
		return nil
	}

	values := make([]string, 0, len(s.values))
	for v := range s.values {
		values = append(values, v)
	}

	slices.Sort(values)

	return values
}

// String renders the scope for logs and audit records.
func (s Scope) String() string {
	if s.unrestricted {
		return "unrestricted"
	}

	return fmt.Sprintf("{%s}", strings.Join(s.Values(), ","))
}
