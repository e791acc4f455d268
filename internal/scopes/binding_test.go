package scopes

import (
	"errors"
	"strings"
	"testing"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

func TestNewFieldBinding(t *testing.T) {
	t.Run("defaults to guid", func(t *testing.T) {
		b, err := NewFieldBinding("requester_guid", "")
		if err != nil {
			t.Fatalf("NewFieldBinding() error = %v", err)
		}

		if b.IdentityAttr != "guid" {
			t.Errorf("IdentityAttr = %v, want guid", b.IdentityAttr)
		}
	})

	t.Run("explicit attribute", func(t *testing.T) {
		b, err := NewFieldBinding("owner_email", "email")
		if err != nil {
			t.Fatalf("NewFieldBinding() error = %v", err)
		}

		if b.IdentityAttr != "email" {
			t.Errorf("IdentityAttr = %v, want email", b.IdentityAttr)
		}
	})

	t.Run("empty entity field", func(t *testing.T) {
		if _, err := NewFieldBinding("", "guid"); !errors.Is(err, ErrEmptyField) {
			t.Errorf("NewFieldBinding() error = %v, want ErrEmptyField", err)
		}
	})
}

func selectApprovals() *entsql.Selector {
	return entsql.Dialect(dialect.SQLite).
		Select("id", "requester_guid").
		From(entsql.Table("approvals"))
}

func TestScopeFilter_Apply(t *testing.T) {
	binding, err := NewFieldBinding("requester_guid", "")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("finite scope adds IN predicate", func(t *testing.T) {
		f := &ScopeFilter{Binding: binding, Scope: NewScope("u-1", "u-2")}

		sel := selectApprovals()
		f.Apply(sel)

		query, args := sel.Query()
		if !strings.Contains(query, "IN") || !strings.Contains(query, "requester_guid") {
			t.Errorf("query = %v, want IN predicate on requester_guid", query)
		}

		if len(args) != 2 {
			t.Errorf("args = %v, want 2 scope values", args)
		}
	})

	t.Run("intersects with existing predicates", func(t *testing.T) {
		f := &ScopeFilter{Binding: binding, Scope: NewScope("u-1")}

		sel := selectApprovals().Where(entsql.EQ("status", "pending"))
		f.Apply(sel)

		query, args := sel.Query()
		if !strings.Contains(query, "status") || !strings.Contains(query, "requester_guid") {
			t.Errorf("query = %v, want both predicates", query)
		}

		if len(args) != 2 {
			t.Errorf("args = %v, want status and scope value", args)
		}
	})

	t.Run("unrestricted scope adds nothing", func(t *testing.T) {
		f := &ScopeFilter{Binding: binding, Scope: Unrestricted()}

		sel := selectApprovals()
		f.Apply(sel)

		query, _ := sel.Query()
		if strings.Contains(query, "WHERE") {
			t.Errorf("query = %v, want no predicate", query)
		}
	})

	t.Run("empty scope fails closed", func(t *testing.T) {
		f := &ScopeFilter{Binding: binding, Scope: NewScope()}

		sel := selectApprovals()
		f.Apply(sel)

		query, _ := sel.Query()
		if !strings.Contains(query, "FALSE") {
			t.Errorf("query = %v, want FALSE predicate", query)
		}
	})

	t.Run("nil filter adds nothing", func(t *testing.T) {
		var f *ScopeFilter

		sel := selectApprovals()
		f.Apply(sel)

		query, _ := sel.Query()
		if strings.Contains(query, "WHERE") {
			t.Errorf("query = %v, want no predicate", query)
		}
	})
}

func TestScopeFilter_Allows(t *testing.T) {
	binding, _ := NewFieldBinding("requester_guid", "")

	tests := []struct {
		name   string
		filter *ScopeFilter
		value  string
		want   bool
	}{
		{"member", &ScopeFilter{Binding: binding, Scope: NewScope("u-1")}, "u-1", true},
		{"non-member", &ScopeFilter{Binding: binding, Scope: NewScope("u-1")}, "u-2", false},
		{"empty scope", &ScopeFilter{Binding: binding, Scope: NewScope()}, "u-1", false},
		{"unrestricted", &ScopeFilter{Binding: binding, Scope: Unrestricted()}, "u-9", true},
		{"no filter attached", nil, "u-1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Allows(tt.value); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
