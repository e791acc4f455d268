package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/looplj/approvalhub/internal/tracing"
)

// WithLoggingTracing saves the trace ID and request ID to the request context.
// So the logger can log the trace ID and request ID in the next logs.
func WithLoggingTracing(config tracing.Config) gin.HandlerFunc {
	// Use the configured trace header name, or default to "APH-Trace-Id"
	traceHeader := config.TraceHeader
	if traceHeader == "" {
		traceHeader = "APH-Trace-Id"
	}

	// Use the configured request header name, or default to "APH-Request-Id"
	requestHeader := config.RequestHeader
	if requestHeader == "" {
		requestHeader = "APH-Request-Id"
	}

	return func(c *gin.Context) {
		// Use the trace header from the request first.
		traceID := c.GetHeader(traceHeader)
		if traceID == "" {
			traceID = traceIDFromExtraHeaders(c, config)
		}

		if traceID == "" && len(config.ExtraTraceBodyFields) > 0 {
			var err error

			traceID, err = traceIDFromBody(c, config)
			if err != nil {
				AbortWithError(c, http.StatusBadRequest, err)
				return
			}
		}

		if traceID == "" {
			traceID = tracing.GenerateTraceID()
		}

		// Generate request ID for each request
		requestID := tracing.GenerateRequestID()

		// Set request ID header in response
		c.Header(requestHeader, requestID)

		ctx := tracing.WithTraceID(c.Request.Context(), traceID)
		ctx = tracing.WithRequestID(ctx, requestID)

		operationName := fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())
		ctx = tracing.WithOperationName(ctx, operationName)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// traceIDFromExtraHeaders probes the configured fallback headers, e.g. ids
// assigned by an upstream gateway.
func traceIDFromExtraHeaders(c *gin.Context, config tracing.Config) string {
	for _, header := range config.ExtraTraceHeaders {
		if traceID := c.GetHeader(header); traceID != "" {
			return traceID
		}
	}

	return ""
}

// traceIDFromBody probes the configured JSON paths in the request body when no
// header carries a trace id. The body is restored so handlers can re-read it.
func traceIDFromBody(c *gin.Context, config tracing.Config) (string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read request body: %w", err)
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) == 0 {
		return "", nil
	}

	for _, field := range config.ExtraTraceBodyFields {
		result := gjson.GetBytes(body, field)
		if result.Exists() && result.String() != "" {
			return result.String(), nil
		}
	}

	return "", nil
}
