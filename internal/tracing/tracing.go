package tracing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/looplj/approvalhub/internal/contexts"
)

type Config struct {
	// TraceHeader is the request header carrying an externally assigned
	// trace id. Defaults to APH-Trace-Id when empty.
	TraceHeader string `conf:"trace_header" yaml:"trace_header" json:"trace_header"`
	// RequestHeader is the response header echoing the request id.
	// Defaults to APH-Request-Id when empty.
	RequestHeader string `conf:"request_header" yaml:"request_header" json:"request_header"`
	// ExtraTraceHeaders are additional headers probed for a trace id,
	// e.g. ids assigned by an upstream gateway.
	ExtraTraceHeaders []string `conf:"extra_trace_headers" yaml:"extra_trace_headers" json:"extra_trace_headers"`
	// ExtraTraceBodyFields are JSON paths probed in the request body
	// for a trace id when no header carries one.
	ExtraTraceBodyFields []string `conf:"extra_trace_body_fields" yaml:"extra_trace_body_fields" json:"extra_trace_body_fields"`
}

// GenerateTraceID generates a trace id, formatted as aph-{{uuid}}.
func GenerateTraceID() string {
	id := uuid.New()
	return fmt.Sprintf("aph-%s", id.String())
}

// GenerateRequestID generates a request id, formatted as req-{{uuid}}.
func GenerateRequestID() string {
	id := uuid.New()
	return fmt.Sprintf("req-%s", id.String())
}

// WithTraceID stores the trace id in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return contexts.WithTraceID(ctx, traceID)
}

// GetTraceID gets the trace id from the context.
func GetTraceID(ctx context.Context) (string, bool) {
	return contexts.GetTraceID(ctx)
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return contexts.WithRequestID(ctx, requestID)
}

// GetRequestID gets the request id from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	return contexts.GetRequestID(ctx)
}

// WithOperationName stores the operation name in the context.
func WithOperationName(ctx context.Context, name string) context.Context {
	return contexts.WithOperationName(ctx, name)
}

// GetOperationName gets the operation name from the context.
func GetOperationName(ctx context.Context) (string, bool) {
	return contexts.GetOperationName(ctx)
}
