package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/looplj/approvalhub/internal/log"
)

// bypassKey is an unexported key type to prevent external forgery.
type bypassKey struct{}

// bypassInfo stores bypass metadata.
type bypassInfo struct {
	Reason    string
	Timestamp time.Time
	Identity  *Identity
}

// WithBypassEnforcement creates a local bypass context in which the data
// layer skips scope guards. Only System or Test identities are allowed
// to call. reason must be a stable audit identifier (e.g. "gc-retention",
// "auth-lookup").
func WithBypassEnforcement(ctx context.Context, reason string) (context.Context, error) {
	id, ok := GetIdentity(ctx)
	if !ok {
		return nil, fmt.Errorf("authz: WithBypassEnforcement requires an identity in context")
	}

	if !id.IsSystem() && !id.IsTest() {
		return nil, fmt.Errorf("authz: WithBypassEnforcement requires system or test identity, got %s", id.String())
	}

	info := bypassInfo{
		Reason:    reason,
		Timestamp: time.Now(),
		Identity:  id,
	}

	recordBypassAudit(ctx, info)

	return context.WithValue(ctx, bypassKey{}, info), nil
}

// RunWithBypass executes a bypass operation within a closure, limiting the
// bypass scope. Recommended over WithBypassEnforcement to prevent the
// bypass context from spreading along the call chain.
//
// Example usage:
//
//	count, err := authz.RunWithBypass(ctx, "gc-retention", func(ctx context.Context) (int, error) {
//	    return svc.DeleteDecidedBefore(ctx, cutoff)
//	})
func RunWithBypass[T any](ctx context.Context, reason string, fn func(ctx context.Context) (T, error)) (T, error) {
	bypassCtx, err := WithBypassEnforcement(ctx, reason)
	if err != nil {
		var zero T
		return zero, err
	}

	return fn(bypassCtx)
}

// GetBypassInfo retrieves current bypass information.
// Used for audit and debugging.
func GetBypassInfo(ctx context.Context) (bypassInfo, bool) {
	info, ok := ctx.Value(bypassKey{}).(bypassInfo)
	return info, ok
}

// IsBypassActive checks if the current context is in bypass state.
func IsBypassActive(ctx context.Context) bool {
	_, ok := ctx.Value(bypassKey{}).(bypassInfo)
	return ok
}

// BypassRecord represents a bypass audit record.
type BypassRecord struct {
	Timestamp time.Time
	Identity  string
	Reason    string
}

// auditLogger is the bypass audit logger.
// Can be customized via SetAuditLogger.
var auditLogger func(ctx context.Context, record BypassRecord)

// SetAuditLogger sets a custom audit logger.
// If not set, bypasses are written to the standard log.
func SetAuditLogger(fn func(ctx context.Context, record BypassRecord)) {
	auditLogger = fn
}

func recordBypassAudit(ctx context.Context, info bypassInfo) {
	record := BypassRecord{
		Timestamp: info.Timestamp,
		Identity:  info.Identity.String(),
		Reason:    info.Reason,
	}

	if auditLogger != nil {
		auditLogger(ctx, record)
		return
	}

	log.Debug(ctx, "authz: enforcement bypass",
		log.String("identity", record.Identity),
		log.String("reason", record.Reason),
	)
}
