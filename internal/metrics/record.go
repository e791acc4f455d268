package metrics

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecordRequest records one served HTTP request. No-op until SetupMetrics ran.
func RecordRequest(ctx context.Context, method, path string, status int, latency time.Duration) {
	if requestCount == nil || requestDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	requestCount.Add(ctx, 1, attrs)
	requestDuration.Record(ctx, latency.Seconds(), attrs)
}

// RecordDecision records one policy decision. Denials additionally
// bump a per-action counter, so a scope misconfiguration shows up as
// one obvious series. No-op until SetupMetrics ran.
func RecordDecision(ctx context.Context, policy, decision string) {
	if decisionCount == nil {
		return
	}

	decisionCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("policy", policy),
		attribute.String("decision", decision),
	))

	// "deny" is the chain's decision label for a refused request.
	if decision != "deny" || denialCount == nil {
		return
	}

	denialCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", policyAction(policy)),
	))
}

// RecordResolution records one scope resolution. No-op until
// SetupMetrics ran.
func RecordResolution(ctx context.Context, action string, latency time.Duration, err error) {
	if resolutionDuration == nil {
		return
	}

	resolutionDuration.Record(ctx, latency.Seconds(), metric.WithAttributes(
		attribute.String("action", action),
		attribute.Bool("error", err != nil),
	))
}

// policyAction extracts the action from policy names of the form
// "scope_filter:<action>".
func policyAction(policy string) string {
	if _, action, ok := strings.Cut(policy, ":"); ok {
		return action
	}

	return policy
}

// PolicyMetrics feeds policy decisions into the meter.
type PolicyMetrics struct{}

func (PolicyMetrics) RecordDecision(ctx context.Context, policy, decision string) {
	RecordDecision(ctx, policy, decision)
}
