package scopes

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Registry is the closed table of registered actions. It is built once
// at startup and never mutated afterwards; route setup and resolvers
// only read from it.
type Registry struct {
	actions map[ActionKey]Action
	keys    []ActionKey
}

// NewRegistry builds a registry from the given actions. Duplicate or
// empty keys are rejected.
func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{actions: make(map[ActionKey]Action, len(actions))}

	for _, action := range actions {
		if action.Key == "" {
			return nil, fmt.Errorf("scopes: action with empty key")
		}

		if _, ok := r.actions[action.Key]; ok {
			return nil, fmt.Errorf("scopes: duplicate action key %q", action.Key)
		}

		r.actions[action.Key] = action
		r.keys = append(r.keys, action.Key)
	}

	return r, nil
}

// Lookup returns the action registered under key.
func (r *Registry) Lookup(key ActionKey) (Action, bool) {
	action, ok := r.actions[key]
	return action, ok
}

// Keys returns the registered action keys in registration order.
func (r *Registry) Keys() []ActionKey {
	keys := make([]ActionKey, len(r.keys))
	copy(keys, r.keys)

	return keys
}

// Validate checks every registered rule, aggregating all failures so a
// boot log shows the full damage at once. Run from a startup hook;
// an error here means the process must not serve.
func (r *Registry) Validate() error {
	var result *multierror.Error

	for _, key := range r.keys {
		action := r.actions[key]

		if action.Rule == nil {
			result = multierror.Append(result, fmt.Errorf("action %q: no rule", key))
			continue
		}

		if err := action.Rule.validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("action %q: %w", key, err))
		}
	}

	return result.ErrorOrNil()
}
