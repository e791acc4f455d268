package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/looplj/approvalhub/internal/authz"
)

type ctxMarker string

type stubPolicy struct {
	name  string
	eval  func(ctx context.Context) (Outcome, error)
	calls int
}

func (p *stubPolicy) Name() string { return p.name }

func (p *stubPolicy) Evaluate(ctx context.Context) (Outcome, error) {
	p.calls++
	return p.eval(ctx)
}

func allowWith(name string, key ctxMarker, value string) *stubPolicy {
	return &stubPolicy{
		name: name,
		eval: func(ctx context.Context) (Outcome, error) {
			return Continue(context.WithValue(ctx, key, value)), nil
		},
	}
}

func denyWith(name string, spec ErrorSpec) *stubPolicy {
	return &stubPolicy{
		name: name,
		eval: func(ctx context.Context) (Outcome, error) {
			return Deny(spec), nil
		},
	}
}

func TestChainEvaluatePassesEnrichedContext(t *testing.T) {
	first := allowWith("first", ctxMarker("first"), "1")

	var sawFirst bool

	second := &stubPolicy{
		name: "second",
		eval: func(ctx context.Context) (Outcome, error) {
			sawFirst = ctx.Value(ctxMarker("first")) == "1"
			return Continue(ctx), nil
		},
	}

	ctx, outcome, err := NewChain(first, second).Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if outcome.Denied() {
		t.Fatalf("Evaluate() denied = %v, want allow", outcome.Denial())
	}

	if !sawFirst {
		t.Error("second policy did not observe context written by first")
	}

	if got := ctx.Value(ctxMarker("first")); got != "1" {
		t.Errorf("returned context missing first policy value, got %v", got)
	}
}

func TestChainShortCircuitsOnDeny(t *testing.T) {
	first := allowWith("first", ctxMarker("first"), "1")
	second := denyWith("second", Forbidden)
	third := allowWith("third", ctxMarker("third"), "3")

	_, outcome, err := NewChain(first, second, third).Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if !outcome.Denied() {
		t.Fatal("Evaluate() allowed, want deny")
	}

	if outcome.Denial() != Forbidden {
		t.Errorf("Denial() = %+v, want %+v", outcome.Denial(), Forbidden)
	}

	if outcome.Policy() != "second" {
		t.Errorf("Policy() = %q, want %q", outcome.Policy(), "second")
	}

	if third.calls != 0 {
		t.Errorf("third policy ran %d times after denial, want 0", third.calls)
	}
}

func TestChainAbortsOnPolicyError(t *testing.T) {
	boom := errors.New("store unreachable")
	failing := &stubPolicy{
		name: "failing",
		eval: func(ctx context.Context) (Outcome, error) {
			return Outcome{}, boom
		},
	}
	after := allowWith("after", ctxMarker("after"), "x")

	_, _, err := NewChain(failing, after).Evaluate(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Evaluate() error = %v, want wrapped %v", err, boom)
	}

	if after.calls != 0 {
		t.Errorf("policy after failure ran %d times, want 0", after.calls)
	}
}

func TestChainAppendDoesNotMutateBase(t *testing.T) {
	base := NewChain(allowWith("base", ctxMarker("base"), "b"))

	viewOnly := base.Append(denyWith("view", Forbidden))
	decideOnly := base.Append(denyWith("decide", NotFound))

	if base.Len() != 1 {
		t.Fatalf("base.Len() = %d after appends, want 1", base.Len())
	}

	if viewOnly.Len() != 2 || decideOnly.Len() != 2 {
		t.Fatalf("appended chains have %d and %d policies, want 2 each", viewOnly.Len(), decideOnly.Len())
	}

	if got := viewOnly.Policies()[1].Name(); got != "view" {
		t.Errorf("viewOnly last policy = %q, want %q", got, "view")
	}

	if got := decideOnly.Policies()[1].Name(); got != "decide" {
		t.Errorf("decideOnly last policy = %q, want %q", got, "decide")
	}
}

func TestEmptyChainAllows(t *testing.T) {
	ctx, outcome, err := NewChain().Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if outcome.Denied() {
		t.Fatal("empty chain denied request")
	}

	if ctx == nil {
		t.Fatal("empty chain returned nil context")
	}
}

func TestRequireIdentity(t *testing.T) {
	p := RequireIdentity()

	outcome, err := p.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if !outcome.Denied() {
		t.Fatal("Evaluate() allowed request without identity")
	}

	if outcome.Denial() != Unauthorized {
		t.Errorf("Denial() = %+v, want %+v", outcome.Denial(), Unauthorized)
	}

	ctx, err := authz.WithIdentity(context.Background(), &authz.Identity{
		Type: authz.IdentityTypeUser,
		ID:   1,
		GUID: "u-1",
	})
	if err != nil {
		t.Fatalf("WithIdentity() error = %v", err)
	}

	outcome, err = p.Evaluate(ctx)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if outcome.Denied() {
		t.Errorf("Evaluate() denied authenticated request: %+v", outcome.Denial())
	}
}
