package biz

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/objects"
	"github.com/looplj/approvalhub/internal/scopes"
)

func (env *testEnv) createApproval(t *testing.T, requester *User, title string) *objects.ApprovalInfo {
	t.Helper()

	info, err := env.Approvals.CreateApproval(userContext(t, requester), objects.CreateApprovalInput{
		Title:  title,
		Kind:   "expense",
		Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	return info
}

func TestApprovalServiceCreateApproval(t *testing.T) {
	env := newTestEnv(t)

	requester := env.createUser(t, "requester@example.com", "Requester")

	info, err := env.Approvals.CreateApproval(userContext(t, requester), objects.CreateApprovalInput{
		Title:  "New laptop",
		Kind:   "purchase",
		Amount: decimal.RequireFromString("1999.99"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, info.GUID)
	assert.Equal(t, "New laptop", info.Title)
	assert.Equal(t, "purchase", info.Kind)
	assert.Equal(t, objects.ApprovalStatusPending, info.Status)
	assert.Equal(t, requester.GUID, info.RequesterGUID)
	assert.True(t, decimal.RequireFromString("1999.99").Equal(info.Amount))

	t.Run("requires identity", func(t *testing.T) {
		_, err := env.Approvals.CreateApproval(context.Background(), objects.CreateApprovalInput{Title: "x"})
		assert.ErrorIs(t, err, authz.ErrNoIdentity)
	})
}

func TestApprovalServiceListApprovals(t *testing.T) {
	env := newTestEnv(t)

	supervisor := env.createUser(t, "lead@example.com", "Lead")
	report := env.createUser(t, "report@example.com", "Report")
	outsider := env.createUser(t, "outsider@example.com", "Outsider")

	env.grant(t, supervisor.GUID, "supervises", report.GUID)

	env.createApproval(t, report, "report request")
	env.createApproval(t, supervisor, "own request")
	env.createApproval(t, outsider, "outsider request")

	t.Run("scope limits rows", func(t *testing.T) {
		ctx := env.scopedContext(t, supervisor, scopes.ActionApprovalView, "requester_guid")

		list, err := env.Approvals.ListApprovals(ctx, ListApprovalsParams{})
		require.NoError(t, err)
		require.Len(t, list.Items, 2)

		// Newest first.
		assert.Equal(t, "own request", list.Items[0].Title)
		assert.Equal(t, "report request", list.Items[1].Title)
		assert.Empty(t, list.NextCursor)
	})

	t.Run("subordinate sees own rows only", func(t *testing.T) {
		ctx := env.scopedContext(t, report, scopes.ActionApprovalView, "requester_guid")

		list, err := env.Approvals.ListApprovals(ctx, ListApprovalsParams{})
		require.NoError(t, err)
		require.Len(t, list.Items, 1)
		assert.Equal(t, "report request", list.Items[0].Title)
	})

	t.Run("status filter", func(t *testing.T) {
		ctx := env.scopedContext(t, supervisor, scopes.ActionApprovalView, "requester_guid")

		list, err := env.Approvals.ListApprovals(ctx, ListApprovalsParams{Status: string(objects.ApprovalStatusApproved)})
		require.NoError(t, err)
		assert.Empty(t, list.Items)
	})

	t.Run("missing scope fails closed", func(t *testing.T) {
		_, err := env.Approvals.ListApprovals(userContext(t, supervisor), ListApprovalsParams{})
		assert.ErrorIs(t, err, ErrScopeMissing)
	})
}

func TestApprovalServiceListApprovalsPagination(t *testing.T) {
	env := newTestEnv(t)

	requester := env.createUser(t, "pager@example.com", "Pager")
	for i := 0; i < 5; i++ {
		env.createApproval(t, requester, "request")
	}

	ctx := env.scopedContext(t, requester, scopes.ActionApprovalView, "requester_guid")

	var pages [][]objects.ApprovalInfo

	cursor := ""
	for {
		list, err := env.Approvals.ListApprovals(ctx, ListApprovalsParams{Limit: 2, Cursor: cursor})
		require.NoError(t, err)

		pages = append(pages, list.Items)
		if list.NextCursor == "" {
			break
		}

		cursor = list.NextCursor
	}

	require.Len(t, pages, 3)
	assert.Len(t, pages[0], 2)
	assert.Len(t, pages[1], 2)
	assert.Len(t, pages[2], 1)

	seen := map[string]bool{}
	for _, page := range pages {
		for _, item := range page {
			assert.False(t, seen[item.GUID], "no row repeats across pages")
			seen[item.GUID] = true
		}
	}
	assert.Len(t, seen, 5)

	t.Run("invalid cursor", func(t *testing.T) {
		_, err := env.Approvals.ListApprovals(ctx, ListApprovalsParams{Cursor: "not-a-cursor!"})
		assert.ErrorContains(t, err, "invalid cursor")
	})
}

func TestApprovalServiceGetApproval(t *testing.T) {
	env := newTestEnv(t)

	supervisor := env.createUser(t, "lead@example.com", "Lead")
	report := env.createUser(t, "report@example.com", "Report")
	outsider := env.createUser(t, "outsider@example.com", "Outsider")

	env.grant(t, supervisor.GUID, "supervises", report.GUID)

	inScope := env.createApproval(t, report, "visible")
	outOfScope := env.createApproval(t, outsider, "hidden")

	ctx := env.scopedContext(t, supervisor, scopes.ActionApprovalView, "requester_guid")

	got, err := env.Approvals.GetApproval(ctx, inScope.GUID)
	require.NoError(t, err)
	assert.Equal(t, "visible", got.Title)

	t.Run("out of scope reads as absent", func(t *testing.T) {
		_, err := env.Approvals.GetApproval(ctx, outOfScope.GUID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown guid", func(t *testing.T) {
		_, err := env.Approvals.GetApproval(ctx, "no-such-guid")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestApprovalServiceDecideApproval(t *testing.T) {
	env := newTestEnv(t)

	supervisor := env.createUser(t, "lead@example.com", "Lead")
	report := env.createUser(t, "report@example.com", "Report")

	env.grant(t, supervisor.GUID, "supervises", report.GUID)

	decideCtx := func() context.Context {
		return env.scopedContext(t, supervisor, scopes.ActionApprovalDecide, "requester_guid")
	}

	t.Run("approve", func(t *testing.T) {
		approval := env.createApproval(t, report, "approve me")

		decided, err := env.Approvals.DecideApproval(decideCtx(), approval.GUID, objects.DecideApprovalInput{
			Decision: objects.DecisionApprove,
			Note:     "looks fine",
		})
		require.NoError(t, err)
		assert.Equal(t, objects.ApprovalStatusApproved, decided.Status)
		assert.Equal(t, supervisor.GUID, decided.DecidedBy)
		assert.Equal(t, "looks fine", decided.Note)
	})

	t.Run("reject", func(t *testing.T) {
		approval := env.createApproval(t, report, "reject me")

		decided, err := env.Approvals.DecideApproval(decideCtx(), approval.GUID, objects.DecideApprovalInput{
			Decision: objects.DecisionReject,
		})
		require.NoError(t, err)
		assert.Equal(t, objects.ApprovalStatusRejected, decided.Status)
	})

	t.Run("second decision refused", func(t *testing.T) {
		approval := env.createApproval(t, report, "decide once")

		_, err := env.Approvals.DecideApproval(decideCtx(), approval.GUID, objects.DecideApprovalInput{
			Decision: objects.DecisionApprove,
		})
		require.NoError(t, err)

		_, err = env.Approvals.DecideApproval(decideCtx(), approval.GUID, objects.DecideApprovalInput{
			Decision: objects.DecisionReject,
		})
		assert.ErrorIs(t, err, ErrAlreadyDecided)
	})

	t.Run("own request is outside the decide scope", func(t *testing.T) {
		approval := env.createApproval(t, supervisor, "self approval")

		_, err := env.Approvals.DecideApproval(decideCtx(), approval.GUID, objects.DecideApprovalInput{
			Decision: objects.DecisionApprove,
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid decision", func(t *testing.T) {
		approval := env.createApproval(t, report, "bad verdict")

		_, err := env.Approvals.DecideApproval(decideCtx(), approval.GUID, objects.DecideApprovalInput{
			Decision: objects.Decision("maybe"),
		})
		assert.ErrorIs(t, err, ErrInvalidDecision)
	})

	t.Run("requires identity", func(t *testing.T) {
		approval := env.createApproval(t, report, "anonymous")

		_, err := env.Approvals.DecideApproval(context.Background(), approval.GUID, objects.DecideApprovalInput{
			Decision: objects.DecisionApprove,
		})
		assert.ErrorIs(t, err, authz.ErrNoIdentity)
	})
}

func TestApprovalServiceCancelApproval(t *testing.T) {
	env := newTestEnv(t)

	requester := env.createUser(t, "owner@example.com", "Owner")
	approval := env.createApproval(t, requester, "cancel me")

	ctx := env.scopedContext(t, requester, scopes.ActionApprovalManage, "requester_guid")

	canceled, err := env.Approvals.CancelApproval(ctx, approval.GUID)
	require.NoError(t, err)
	assert.Equal(t, objects.ApprovalStatusCanceled, canceled.Status)

	t.Run("cancel twice refused", func(t *testing.T) {
		_, err := env.Approvals.CancelApproval(ctx, approval.GUID)
		assert.ErrorIs(t, err, ErrAlreadyDecided)
	})

	t.Run("someone else's request is invisible", func(t *testing.T) {
		other := env.createUser(t, "other@example.com", "Other")
		otherApproval := env.createApproval(t, other, "not yours")

		_, err := env.Approvals.CancelApproval(ctx, otherApproval.GUID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestApprovalServiceStats(t *testing.T) {
	env := newTestEnv(t)

	supervisor := env.createUser(t, "lead@example.com", "Lead")
	report := env.createUser(t, "report@example.com", "Report")

	env.grant(t, supervisor.GUID, "supervises", report.GUID)

	env.createApproval(t, report, "pending one")
	env.createApproval(t, report, "pending two")

	decided := env.createApproval(t, report, "decided")
	_, err := env.Approvals.DecideApproval(
		env.scopedContext(t, supervisor, scopes.ActionApprovalDecide, "requester_guid"),
		decided.GUID,
		objects.DecideApprovalInput{Decision: objects.DecisionApprove},
	)
	require.NoError(t, err)

	ctx := env.scopedContext(t, supervisor, scopes.ActionApprovalView, "requester_guid")

	stats, err := env.Approvals.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PendingTotal)
	assert.Equal(t, 1, stats.DecidedToday)
	assert.Equal(t, 1, stats.DecidedThisWk)
	assert.Equal(t, 1, stats.DecidedThisMon)
}

func TestApprovalServiceDeleteDecidedBefore(t *testing.T) {
	env := newTestEnv(t)

	supervisor := env.createUser(t, "lead@example.com", "Lead")
	report := env.createUser(t, "report@example.com", "Report")

	env.grant(t, supervisor.GUID, "supervises", report.GUID)

	decided := env.createApproval(t, report, "old decided")
	_, err := env.Approvals.DecideApproval(
		env.scopedContext(t, supervisor, scopes.ActionApprovalDecide, "requester_guid"),
		decided.GUID,
		objects.DecideApprovalInput{Decision: objects.DecisionApprove},
	)
	require.NoError(t, err)

	pending := env.createApproval(t, report, "still pending")

	ctx := authz.WithSystemBypass(context.Background(), "retention-test")

	removed, err := env.Approvals.DeleteDecidedBefore(ctx, time.Now().UTC().Add(time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	t.Run("pending rows survive", func(t *testing.T) {
		viewCtx := env.scopedContext(t, report, scopes.ActionApprovalView, "requester_guid")

		got, err := env.Approvals.GetApproval(viewCtx, pending.GUID)
		require.NoError(t, err)
		assert.Equal(t, objects.ApprovalStatusPending, got.Status)

		_, err = env.Approvals.GetApproval(viewCtx, decided.GUID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nothing left to delete", func(t *testing.T) {
		removed, err := env.Approvals.DeleteDecidedBefore(ctx, time.Now().UTC().Add(time.Hour), 100)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("requires scope or bypass", func(t *testing.T) {
		_, err := env.Approvals.DeleteDecidedBefore(context.Background(), time.Now().UTC(), 100)
		assert.ErrorIs(t, err, ErrScopeMissing)
	})
}

func TestApprovalServiceForEachApproval(t *testing.T) {
	env := newTestEnv(t)

	requester := env.createUser(t, "export@example.com", "Export")
	env.createApproval(t, requester, "first")
	env.createApproval(t, requester, "second")

	ctx := authz.WithSystemBypass(context.Background(), "backup-test")

	var titles []string

	err := env.Approvals.ForEachApproval(ctx, func(a *Approval) error {
		titles = append(titles, a.Title)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, titles)
}

func TestApprovalCursorRoundTrip(t *testing.T) {
	cursor := encodeApprovalCursor(42)
	require.NotEmpty(t, cursor)

	lastID, err := decodeApprovalCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, 42, lastID)

	_, err = decodeApprovalCursor("%%%")
	assert.Error(t, err)
}
