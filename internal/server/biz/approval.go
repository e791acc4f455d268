package biz

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/contexts"
	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/objects"
	"github.com/looplj/approvalhub/internal/pkg/xtime"
	"github.com/looplj/approvalhub/internal/server/db"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type ApprovalServiceParams struct {
	fx.In

	DB *db.DB
}

type ApprovalService struct {
	*AbstractService
}

func NewApprovalService(params ApprovalServiceParams) *ApprovalService {
	return &ApprovalService{
		AbstractService: &AbstractService{
			db: params.DB,
		},
	}
}

// CreateApproval files a new pending request for the caller.
func (s *ApprovalService) CreateApproval(ctx context.Context, input objects.CreateApprovalInput) (*objects.ApprovalInfo, error) {
	ident, err := authz.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	guid := uuid.NewString()
	now := xtime.UTCNow()

	query, args := s.builder().
		Insert("approvals").
		Columns("guid", "requester_guid", "title", "kind", "amount", "status", "created_at", "updated_at").
		Values(guid, ident.GUID, input.Title, input.Kind, input.Amount, objects.ApprovalStatusPending, now, now).
		Query()

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to create approval: %w", err)
	}

	log.Info(ctx, "approval created",
		log.String("guid", guid),
		log.String("requester_guid", ident.GUID),
	)

	return s.getByGUID(ctx, s.db.DB(), guid, false)
}

type ListApprovalsParams struct {
	Status string
	Cursor string
	Limit  int
}

// ListApprovals returns the requests inside the caller's resolved
// scope, newest first, with cursor pagination.
func (s *ApprovalService) ListApprovals(ctx context.Context, params ListApprovalsParams) (*objects.ApprovalList, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	if limit > maxListLimit {
		limit = maxListLimit
	}

	sel := s.builder().
		Select(approvalColumns()...).
		From(entsql.Table("approvals")).
		OrderBy(entsql.Desc("id")).
		Limit(limit + 1)

	if params.Status != "" {
		sel.Where(entsql.EQ("status", params.Status))
	}

	if params.Cursor != "" {
		lastID, err := decodeApprovalCursor(params.Cursor)
		if err != nil {
			return nil, err
		}

		sel.Where(entsql.LT("id", lastID))
	}

	if err := applyScopeConstraint(ctx, sel); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*Approval

	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}

		approvals = append(approvals, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}

	list := &objects.ApprovalList{Items: make([]objects.ApprovalInfo, 0, len(approvals))}

	if len(approvals) > limit {
		approvals = approvals[:limit]
		list.NextCursor = encodeApprovalCursor(approvals[limit-1].ID)
	}

	for _, a := range approvals {
		list.Items = append(list.Items, *a.Info())
	}

	return list, nil
}

// GetApproval returns one request. Requests outside the caller's scope
// read as absent.
func (s *ApprovalService) GetApproval(ctx context.Context, guid string) (*objects.ApprovalInfo, error) {
	return s.getByGUID(ctx, s.db.DB(), guid, true)
}

// DecideApproval approves or rejects a pending request. The row is
// re-read inside the transaction with the scope constraint applied, so
// a request that left the caller's scope after the policy ran still
// cannot be decided.
func (s *ApprovalService) DecideApproval(ctx context.Context, guid string, input objects.DecideApprovalInput) (*objects.ApprovalInfo, error) {
	ident, err := authz.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	var status objects.ApprovalStatus

	switch input.Decision {
	case objects.DecisionApprove:
		status = objects.ApprovalStatusApproved
	case objects.DecisionReject:
		status = objects.ApprovalStatusRejected
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, input.Decision)
	}

	var decided *objects.ApprovalInfo

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		approval, err := s.fetchForDecision(ctx, tx, guid)
		if err != nil {
			return err
		}

		if approval.Status.IsDecided() || approval.Status == objects.ApprovalStatusCanceled {
			return fmt.Errorf("approval %s is %s: %w", guid, approval.Status, ErrAlreadyDecided)
		}

		now := xtime.UTCNow()

		query, args := s.builder().
			Update("approvals").
			Set("status", status).
			Set("decided_by_guid", ident.GUID).
			Set("decision_note", input.Note).
			Set("decided_at", now).
			Set("updated_at", now).
			Where(entsql.And(
				entsql.EQ("guid", guid),
				entsql.EQ("status", objects.ApprovalStatusPending),
			)).
			Query()

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to decide approval: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to decide approval: %w", err)
		}

		if affected == 0 {
			return fmt.Errorf("approval %s: %w", guid, ErrAlreadyDecided)
		}

		decided, err = s.getByGUID(ctx, tx, guid, false)

		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "approval decided",
		log.String("guid", guid),
		log.String("status", string(status)),
		log.String("decided_by", ident.GUID),
	)

	return decided, nil
}

// CancelApproval withdraws the caller's own pending request.
func (s *ApprovalService) CancelApproval(ctx context.Context, guid string) (*objects.ApprovalInfo, error) {
	var canceled *objects.ApprovalInfo

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		approval, err := s.fetchForDecision(ctx, tx, guid)
		if err != nil {
			return err
		}

		if approval.Status != objects.ApprovalStatusPending {
			return fmt.Errorf("approval %s is %s: %w", guid, approval.Status, ErrAlreadyDecided)
		}

		now := xtime.UTCNow()

		query, args := s.builder().
			Update("approvals").
			Set("status", objects.ApprovalStatusCanceled).
			Set("updated_at", now).
			Where(entsql.And(
				entsql.EQ("guid", guid),
				entsql.EQ("status", objects.ApprovalStatusPending),
			)).
			Query()

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to cancel approval: %w", err)
		}

		canceled, err = s.getByGUID(ctx, tx, guid, false)

		return err
	})
	if err != nil {
		return nil, err
	}

	return canceled, nil
}

// Stats returns pending and calendar-period decision counts for the
// caller's scope.
func (s *ApprovalService) Stats(ctx context.Context) (*objects.ApprovalStats, error) {
	stats := &objects.ApprovalStats{}

	pending, err := s.countWhere(ctx, entsql.EQ("status", objects.ApprovalStatusPending))
	if err != nil {
		return nil, err
	}

	stats.PendingTotal = pending

	periods := xtime.GetCalendarPeriods(time.UTC)

	for _, span := range []struct {
		period xtime.Period
		out    *int
	}{
		{periods.Today, &stats.DecidedToday},
		{periods.ThisWeek, &stats.DecidedThisWk},
		{periods.ThisMonth, &stats.DecidedThisMon},
	} {
		count, err := s.countWhere(ctx,
			entsql.And(
				entsql.In("status", string(objects.ApprovalStatusApproved), string(objects.ApprovalStatusRejected)),
				entsql.GTE("decided_at", span.period.Start),
				entsql.LT("decided_at", span.period.End),
			),
		)
		if err != nil {
			return nil, err
		}

		*span.out = count
	}

	return stats, nil
}

// DeleteDecidedBefore removes up to limit requests that reached a
// terminal state before the cutoff. Used by the retention worker.
func (s *ApprovalService) DeleteDecidedBefore(ctx context.Context, before time.Time, limit int) (int, error) {
	sel := s.builder().
		Select("id").
		From(entsql.Table("approvals")).
		Where(entsql.And(
			entsql.In("status",
				string(objects.ApprovalStatusApproved),
				string(objects.ApprovalStatusRejected),
				string(objects.ApprovalStatusCanceled),
			),
			entsql.LT("updated_at", before),
		)).
		OrderBy(entsql.Asc("id")).
		Limit(limit)

	if err := applyScopeConstraint(ctx, sel); err != nil {
		return 0, err
	}

	rows, err := s.db.Query(ctx, sel)
	if err != nil {
		return 0, fmt.Errorf("failed to select expired approvals: %w", err)
	}
	defer rows.Close()

	var ids []any

	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan approval id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to select expired approvals: %w", err)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	query, args := s.builder().
		Delete("approvals").
		Where(entsql.In("id", ids...)).
		Query()

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to delete expired approvals: %w", err)
	}

	return len(ids), nil
}

// ForEachApproval streams every visible request, for backup export.
func (s *ApprovalService) ForEachApproval(ctx context.Context, fn func(a *Approval) error) error {
	sel := s.builder().
		Select(approvalColumns()...).
		From(entsql.Table("approvals")).
		OrderBy(entsql.Asc("id"))

	if err := applyScopeConstraint(ctx, sel); err != nil {
		return err
	}

	rows, err := s.db.Query(ctx, sel)
	if err != nil {
		return fmt.Errorf("failed to export approvals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return fmt.Errorf("failed to scan approval: %w", err)
		}

		if err := fn(a); err != nil {
			return err
		}
	}

	return rows.Err()
}

// ImportApproval writes a previously exported request back, keyed by
// guid. With overwrite false an existing row wins and the import is
// skipped; with overwrite true the row is replaced field for field.
// Reserved for restores, so it demands the owner (or system) context.
func (s *ApprovalService) ImportApproval(ctx context.Context, a *Approval, overwrite bool) (bool, error) {
	if err := authz.RequireOwner(ctx); err != nil {
		return false, err
	}

	resolve := entsql.ResolveWithIgnore()
	if overwrite {
		resolve = entsql.ResolveWith(func(u *entsql.UpdateSet) {
			u.Set("requester_guid", a.RequesterGUID)
			u.Set("title", a.Title)
			u.Set("kind", a.Kind)
			u.Set("amount", a.Amount)
			u.Set("status", string(a.Status))
			u.Set("decided_by_guid", a.DecidedByGUID)
			u.Set("decision_note", a.DecisionNote)
			u.Set("decided_at", a.DecidedAt)
			u.Set("created_at", a.CreatedAt)
			u.Set("updated_at", a.UpdatedAt)
		})
	}

	query, args := s.builder().
		Insert("approvals").
		Columns("guid", "requester_guid", "title", "kind", "amount", "status",
			"decided_by_guid", "decision_note", "decided_at", "created_at", "updated_at").
		Values(a.GUID, a.RequesterGUID, a.Title, a.Kind, a.Amount, string(a.Status),
			a.DecidedByGUID, a.DecisionNote, a.DecidedAt, a.CreatedAt, a.UpdatedAt).
		OnConflict(
			entsql.ConflictColumns("guid"),
			resolve,
		).
		Query()

	res, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to import approval %q: %w", a.GUID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to import approval %q: %w", a.GUID, err)
	}

	return affected > 0, nil
}

// querier runs row queries on either the pool or an open transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *ApprovalService) getByGUID(ctx context.Context, q querier, guid string, scoped bool) (*objects.ApprovalInfo, error) {
	sel := s.builder().
		Select(approvalColumns()...).
		From(entsql.Table("approvals")).
		Where(entsql.EQ("guid", guid))

	if scoped {
		if err := applyScopeConstraint(ctx, sel); err != nil {
			return nil, err
		}
	}

	query, args := sel.Query()

	approval, err := scanApproval(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("approval %s: %w", guid, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get approval: %w", err)
	}

	return approval.Info(), nil
}

// fetchForDecision reads the row inside the transaction with the scope
// constraint applied and double-checks the requester against the
// resolved scope.
func (s *ApprovalService) fetchForDecision(ctx context.Context, tx *sql.Tx, guid string) (*Approval, error) {
	sel := s.builder().
		Select(approvalColumns()...).
		From(entsql.Table("approvals")).
		Where(entsql.EQ("guid", guid))

	if err := applyScopeConstraint(ctx, sel); err != nil {
		return nil, err
	}

	query, args := sel.Query()

	approval, err := scanApproval(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("approval %s: %w", guid, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get approval: %w", err)
	}

	if filter, ok := contexts.GetScopeFilter(ctx); ok && !filter.Allows(approval.RequesterGUID) {
		return nil, fmt.Errorf("approval %s: %w", guid, ErrNotFound)
	}

	return approval, nil
}

func (s *ApprovalService) countWhere(ctx context.Context, pred *entsql.Predicate) (int, error) {
	sel := s.builder().
		Select(entsql.Count("*")).
		From(entsql.Table("approvals")).
		Where(pred)

	if err := applyScopeConstraint(ctx, sel); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRow(ctx, sel).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}

	return count, nil
}

// approvalCursor marks a position in the id-descending listing.
type approvalCursor struct {
	LastID int `msgpack:"last_id"`
}

func encodeApprovalCursor(lastID int) string {
	data, err := msgpack.Marshal(approvalCursor{LastID: lastID})
	if err != nil {
		panic(err)
	}

	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeApprovalCursor(cursor string) (int, error) {
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}

	var c approvalCursor
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}

	return c.LastID, nil
}
