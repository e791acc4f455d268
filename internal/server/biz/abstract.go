package biz

import (
	"context"
	"database/sql"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/contexts"
	"github.com/looplj/approvalhub/internal/server/db"
)

type AbstractService struct {
	db *db.DB
}

func (a *AbstractService) builder() *entsql.DialectBuilder {
	return a.db.Builder()
}

// execer runs statements on either the pool or an open transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// applyScopeConstraint intersects the selector with the caller's
// resolved scope. Queries without a scope filter are refused unless an
// enforcement bypass is active, so a route that forgot its policy reads
// nothing instead of everything.
func applyScopeConstraint(ctx context.Context, s *entsql.Selector) error {
	if filter, ok := contexts.GetScopeFilter(ctx); ok {
		filter.Apply(s)
		return nil
	}

	if authz.IsBypassActive(ctx) {
		return nil
	}

	return ErrScopeMissing
}
