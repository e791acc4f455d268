package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/spf13/afero"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/contexts"
	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/pkg/ringbuffer"
	"github.com/looplj/approvalhub/internal/pkg/xregexp"
	"github.com/looplj/approvalhub/internal/pkg/xtime"
	"github.com/looplj/approvalhub/internal/policy"
)

type AuditConfig struct {
	Enabled bool `conf:"enabled" yaml:"enabled" json:"enabled"`

	// Path of the JSONL audit file.
	Path string `conf:"path" yaml:"path" json:"path"`

	// Actions holds patterns limiting which denied actions are
	// recorded. Wildcards allowed. Empty records all of them.
	Actions []string `conf:"actions" yaml:"actions" json:"actions"`

	// DedupTTL suppresses repeats of the same caller and policy within
	// the window. Defaults to 1m.
	DedupTTL time.Duration `conf:"dedup_ttl" yaml:"dedup_ttl" json:"dedup_ttl"`
}

const (
	auditKindDenial = "denial"
	auditKindBypass = "bypass"

	auditQueueSize  = 256
	auditDedupSize  = 2048
	auditRecentSize = 256

	defaultAuditPath     = "audit/approvalhub-audit.jsonl"
	defaultAuditDedupTTL = time.Minute
)

// AuditEntry is one JSONL audit line.
type AuditEntry struct {
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"`
	Policy   string    `json:"policy,omitempty"`
	Action   string    `json:"action,omitempty"`
	Identity string    `json:"identity,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	TraceID  string    `json:"trace_id,omitempty"`
}

type AuditServiceParams struct {
	fx.In

	Config AuditConfig
	FS     afero.Fs
}

// AuditService appends denial and bypass records to a JSONL file. The
// write path is asynchronous; when the queue is full, entries are
// dropped rather than stalling request handling. The newest entries are
// additionally held in memory for the admin recents endpoint.
type AuditService struct {
	cfg   AuditConfig
	fs    afero.Fs
	dedup *expirable.LRU[string, struct{}]

	// recent is keyed by a sequence number rather than wall time so two
	// entries in the same instant cannot collapse into one slot.
	recent    *ringbuffer.RingBuffer[AuditEntry]
	recentSeq atomic.Int64

	entries chan AuditEntry
	done    chan struct{}
	file    afero.File
}

func NewAuditService(params AuditServiceParams) *AuditService {
	cfg := params.Config
	if cfg.Path == "" {
		cfg.Path = defaultAuditPath
	}

	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = defaultAuditDedupTTL
	}

	return &AuditService{
		cfg:     cfg,
		fs:      params.FS,
		dedup:   expirable.NewLRU[string, struct{}](auditDedupSize, nil, cfg.DedupTTL),
		recent:  ringbuffer.New[AuditEntry](auditRecentSize),
		entries: make(chan AuditEntry, auditQueueSize),
		done:    make(chan struct{}),
	}
}

// Start opens the audit file and launches the writer.
func (s *AuditService) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	if dir := filepath.Dir(s.cfg.Path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit directory: %w", err)
		}
	}

	file, err := s.fs.OpenFile(s.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}

	s.file = file

	go s.writeLoop()

	log.Info(ctx, "audit log started", log.String("path", s.cfg.Path))

	return nil
}

// Stop drains the queue and closes the file.
func (s *AuditService) Stop(ctx context.Context) error {
	if s.file == nil {
		return nil
	}

	close(s.entries)

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return s.file.Close()
}

func (s *AuditService) writeLoop() {
	defer close(s.done)

	for entry := range s.entries {
		line, err := json.Marshal(entry)
		if err != nil {
			log.Warn(context.Background(), "failed to encode audit entry", log.Cause(err))
			continue
		}

		line = append(line, '\n')
		if _, err := s.file.Write(line); err != nil {
			log.Warn(context.Background(), "failed to write audit entry", log.Cause(err))
		}
	}
}

// RecordDecision observes policy decisions and records the denials.
func (s *AuditService) RecordDecision(ctx context.Context, policyName, decision string) {
	if s.file == nil || decision != policy.DecisionDeny {
		return
	}

	action := actionFromPolicyName(policyName)
	if !s.actionIncluded(action) {
		return
	}

	identity := ""
	if ident, ok := authz.GetIdentity(ctx); ok {
		identity = ident.String()
	}

	// One line per caller and policy within the window is enough to
	// reconstruct what was denied.
	if _, dup := s.dedup.Get(identity + "|" + policyName); dup {
		return
	}

	s.dedup.Add(identity+"|"+policyName, struct{}{})

	entry := AuditEntry{
		Time:     xtime.UTCNow(),
		Kind:     auditKindDenial,
		Policy:   policyName,
		Action:   action,
		Identity: identity,
	}

	if traceID, ok := contexts.GetTraceID(ctx); ok {
		entry.TraceID = traceID
	}

	s.recent.Push(s.recentSeq.Add(1), entry)
	s.enqueue(ctx, entry)
}

// RecordBypass records an enforcement bypass, wired into authz.
func (s *AuditService) RecordBypass(ctx context.Context, record authz.BypassRecord) {
	if s.file == nil {
		return
	}

	entry := AuditEntry{
		Time:     record.Timestamp,
		Kind:     auditKindBypass,
		Identity: record.Identity,
		Reason:   record.Reason,
	}

	if traceID, ok := contexts.GetTraceID(ctx); ok {
		entry.TraceID = traceID
	}

	s.recent.Push(s.recentSeq.Add(1), entry)
	s.enqueue(ctx, entry)
}

// RecentEntries returns up to limit of the newest retained entries,
// newest first. A limit of zero or less returns everything retained.
func (s *AuditService) RecentEntries(limit int) []AuditEntry {
	items := s.recent.GetAll()

	entries := make([]AuditEntry, 0, len(items))

	for i := len(items) - 1; i >= 0; i-- {
		entries = append(entries, items[i].Value)

		if limit > 0 && len(entries) == limit {
			break
		}
	}

	return entries
}

func (s *AuditService) enqueue(ctx context.Context, entry AuditEntry) {
	select {
	case s.entries <- entry:
	default:
		log.Warn(ctx, "audit queue full, dropping entry", log.String("kind", entry.Kind))
	}
}

func (s *AuditService) actionIncluded(action string) bool {
	if len(s.cfg.Actions) == 0 {
		return true
	}

	for _, pattern := range s.cfg.Actions {
		if xregexp.MatchString(pattern, action) {
			return true
		}
	}

	return false
}

// actionFromPolicyName extracts the action key from policy names of the
// form "scope_filter:<action>".
func actionFromPolicyName(policyName string) string {
	if _, action, ok := strings.Cut(policyName, ":"); ok {
		return action
	}

	return ""
}
