package biz

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/contexts"
	"github.com/looplj/approvalhub/internal/policy"
)

func newAuditService(t *testing.T, cfg AuditConfig) (*AuditService, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()

	svc := NewAuditService(AuditServiceParams{Config: cfg, FS: fs})
	require.NoError(t, svc.Start(context.Background()))

	return svc, fs
}

func readAuditEntries(t *testing.T, fs afero.Fs, path string) []AuditEntry {
	t.Helper()

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	var entries []AuditEntry

	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}

		var entry AuditEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))

		entries = append(entries, entry)
	}

	return entries
}

func deniedContext(t *testing.T) context.Context {
	t.Helper()

	ctx, err := authz.WithIdentity(context.Background(), &authz.Identity{
		Type: authz.IdentityTypeUser,
		ID:   7,
		GUID: "user-7",
	})
	require.NoError(t, err)

	return contexts.WithTraceID(ctx, "trace-123")
}

func TestAuditServiceRecordsDenials(t *testing.T) {
	svc, fs := newAuditService(t, AuditConfig{Enabled: true, Path: "audit.jsonl"})
	ctx := deniedContext(t)

	svc.RecordDecision(ctx, "scope_filter:process.approval.request.view", policy.DecisionDeny)
	svc.RecordDecision(ctx, "scope_filter:process.approval.request.view", policy.DecisionAllow)

	require.NoError(t, svc.Stop(context.Background()))

	entries := readAuditEntries(t, fs, "audit.jsonl")
	require.Len(t, entries, 1, "allow decisions are not recorded")

	entry := entries[0]
	assert.Equal(t, "denial", entry.Kind)
	assert.Equal(t, "scope_filter:process.approval.request.view", entry.Policy)
	assert.Equal(t, "process.approval.request.view", entry.Action)
	assert.Equal(t, "user:7(user-7)", entry.Identity)
	assert.Equal(t, "trace-123", entry.TraceID)
	assert.WithinDuration(t, time.Now().UTC(), entry.Time, time.Minute)
}

func TestAuditServiceDeduplicatesRepeats(t *testing.T) {
	svc, fs := newAuditService(t, AuditConfig{Enabled: true, Path: "audit.jsonl", DedupTTL: time.Minute})
	ctx := deniedContext(t)

	svc.RecordDecision(ctx, "scope_filter:process.approval.request.view", policy.DecisionDeny)
	svc.RecordDecision(ctx, "scope_filter:process.approval.request.view", policy.DecisionDeny)
	svc.RecordDecision(ctx, "scope_filter:process.approval.request.decide", policy.DecisionDeny)

	require.NoError(t, svc.Stop(context.Background()))

	entries := readAuditEntries(t, fs, "audit.jsonl")
	require.Len(t, entries, 2, "repeat within the window collapses, distinct policy does not")
	assert.Equal(t, "process.approval.request.view", entries[0].Action)
	assert.Equal(t, "process.approval.request.decide", entries[1].Action)
}

func TestAuditServiceActionFilter(t *testing.T) {
	svc, fs := newAuditService(t, AuditConfig{
		Enabled: true,
		Path:    "audit.jsonl",
		Actions: []string{"process.approval.request.*"},
	})
	ctx := deniedContext(t)

	svc.RecordDecision(ctx, "scope_filter:process.approval.request.view", policy.DecisionDeny)
	svc.RecordDecision(ctx, "scope_filter:process.approval.user.view", policy.DecisionDeny)

	require.NoError(t, svc.Stop(context.Background()))

	entries := readAuditEntries(t, fs, "audit.jsonl")
	require.Len(t, entries, 1)
	assert.Equal(t, "process.approval.request.view", entries[0].Action)
}

func TestAuditServiceRecordsBypasses(t *testing.T) {
	svc, fs := newAuditService(t, AuditConfig{Enabled: true, Path: "audit.jsonl"})

	now := time.Now().UTC()
	svc.RecordBypass(context.Background(), authz.BypassRecord{
		Timestamp: now,
		Identity:  "system",
		Reason:    "gc-retention",
	})

	require.NoError(t, svc.Stop(context.Background()))

	entries := readAuditEntries(t, fs, "audit.jsonl")
	require.Len(t, entries, 1)
	assert.Equal(t, "bypass", entries[0].Kind)
	assert.Equal(t, "system", entries[0].Identity)
	assert.Equal(t, "gc-retention", entries[0].Reason)
}

func TestAuditServiceRecentEntries(t *testing.T) {
	svc, _ := newAuditService(t, AuditConfig{Enabled: true, Path: "audit.jsonl"})
	ctx := deniedContext(t)

	svc.RecordDecision(ctx, "scope_filter:process.approval.request.view", policy.DecisionDeny)
	svc.RecordDecision(ctx, "scope_filter:process.approval.request.decide", policy.DecisionDeny)
	svc.RecordBypass(context.Background(), authz.BypassRecord{
		Timestamp: time.Now().UTC(),
		Identity:  "system",
		Reason:    "backup",
	})

	recent := svc.RecentEntries(0)
	require.Len(t, recent, 3)

	// Newest first.
	assert.Equal(t, "bypass", recent[0].Kind)
	assert.Equal(t, "process.approval.request.decide", recent[1].Action)
	assert.Equal(t, "process.approval.request.view", recent[2].Action)

	limited := svc.RecentEntries(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "bypass", limited[0].Kind)
	assert.Equal(t, "process.approval.request.decide", limited[1].Action)

	require.NoError(t, svc.Stop(context.Background()))
}

func TestAuditServiceDisabled(t *testing.T) {
	fs := afero.NewMemMapFs()
	svc := NewAuditService(AuditServiceParams{Config: AuditConfig{Enabled: false}, FS: fs})

	require.NoError(t, svc.Start(context.Background()))

	// Nothing is opened, recording is a no-op, stopping is safe.
	svc.RecordDecision(deniedContext(t), "scope_filter:process.approval.request.view", policy.DecisionDeny)
	require.NoError(t, svc.Stop(context.Background()))

	exists, err := afero.Exists(fs, defaultAuditPath)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, svc.RecentEntries(0))
}

func TestActionFromPolicyName(t *testing.T) {
	assert.Equal(t, "process.approval.request.view", actionFromPolicyName("scope_filter:process.approval.request.view"))
	assert.Equal(t, "", actionFromPolicyName("require_identity"))
}
