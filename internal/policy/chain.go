package policy

import (
	"context"
	"fmt"
)

// Chain is an ordered list of policies evaluated front to back. Chain
// is a value type: Append returns a new chain and never mutates the
// receiver, so a shared base chain can be extended per route safely.
type Chain struct {
	policies []Policy
}

// NewChain builds a chain from the given policies.
func NewChain(policies ...Policy) Chain {
	c := Chain{policies: make([]Policy, len(policies))}
	copy(c.policies, policies)

	return c
}

// Append returns a new chain with the given policies added at the end.
// The receiver is left untouched.
func (c Chain) Append(policies ...Policy) Chain {
	combined := make([]Policy, 0, len(c.policies)+len(policies))
	combined = append(combined, c.policies...)
	combined = append(combined, policies...)

	return Chain{policies: combined}
}

// Len returns the number of policies in the chain.
func (c Chain) Len() int {
	return len(c.policies)
}

// Policies returns a copy of the chain's policies in evaluation order.
func (c Chain) Policies() []Policy {
	out := make([]Policy, len(c.policies))
	copy(out, c.policies)

	return out
}

// Evaluate runs the chain. Policies run in order, each seeing the
// context produced by its predecessors. The first denial stops the
// chain and later policies never run. A policy error aborts the chain
// immediately and is returned wrapped with the policy name.
func (c Chain) Evaluate(ctx context.Context) (context.Context, Outcome, error) {
	for _, p := range c.policies {
		outcome, err := p.Evaluate(ctx)
		if err != nil {
			return ctx, Outcome{}, fmt.Errorf("policy %s: %w", p.Name(), err)
		}

		if outcome.Denied() {
			outcome.policy = p.Name()
			return ctx, outcome, nil
		}

		if next := outcome.Context(); next != nil {
			ctx = next
		}
	}

	return ctx, Continue(ctx), nil
}
