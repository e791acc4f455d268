package contexts

import (
	"context"

	"github.com/looplj/approvalhub/internal/scopes"
)

// ContextKey defines the context key type.
type ContextKey string

const (
	// containerContextKey is used to store the context container in the context.
	containerContextKey ContextKey = "context_container"
)

// WithTraceID stores the trace id in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	container := getContainer(ctx)
	container.TraceID = &traceID

	return withContainer(ctx, container)
}

// GetTraceID retrieves the trace id from the context.
func GetTraceID(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	if container.TraceID != nil {
		return *container.TraceID, true
	}

	return "", false
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	container := getContainer(ctx)
	container.RequestID = &requestID

	return withContainer(ctx, container)
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	if container.RequestID != nil {
		return *container.RequestID, true
	}

	return "", false
}

// WithOperationName stores the operation name in the context.
func WithOperationName(ctx context.Context, name string) context.Context {
	container := getContainer(ctx)
	container.OperationName = &name

	return withContainer(ctx, container)
}

// GetOperationName retrieves the operation name from the context.
func GetOperationName(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	if container.OperationName != nil {
		return *container.OperationName, true
	}

	return "", false
}

// WithScopeFilter stores the scope filter constraint in the context.
// The constraint lives and dies with the request context; it is never
// persisted or shared across requests.
func WithScopeFilter(ctx context.Context, filter *scopes.ScopeFilter) context.Context {
	container := getContainer(ctx)
	container.ScopeFilter = filter

	return withContainer(ctx, container)
}

// GetScopeFilter retrieves the scope filter constraint from the context.
// Absence means the data layer applies no additional restriction.
func GetScopeFilter(ctx context.Context) (*scopes.ScopeFilter, bool) {
	container := getContainer(ctx)
	return container.ScopeFilter, container.ScopeFilter != nil
}
