// Package dispatch routes calls on a registered service to one of its
// experiment's trials. The registry is built once at startup, validated
// fast-fail, and immutable afterwards, so the per-call path is lock-free
// except for kill-switch reads.
package dispatch

import "context"

// Invocation describes one attempt against one trial. It is built fresh per
// attempt, passed by value through the decorator chain, and never mutated.
type Invocation struct {
	// Experiment and Service identify the routed experiment.
	Experiment string
	Service    string

	// Method is the invoked method name.
	Method string

	// TrialKey is the trial this attempt executes. During error-policy
	// replays it reflects each replay target in turn.
	TrialKey string

	// SelectedKey is the trial the selection mode originally chose for the
	// call, regardless of any kill-switch or replay redirection. Decorators
	// use it for attribution.
	SelectedKey string

	// Args are the original call arguments, shared across all attempts.
	Args []any
}

// Handler executes one attempt and returns the method result.
type Handler func(ctx context.Context, inv Invocation) (any, error)

// Decorator wraps a handler with cross-cutting behavior. Decorators run in
// registration order (first registered is outermost) around every individual
// attempt, so telemetry observes each replay, not just the final outcome.
// Decorators are built once per registry and shared across calls; they must
// be stateless or internally thread-safe.
type Decorator func(next Handler) Handler

// chain composes decorators around a handler, first decorator outermost.
func chain(decorators []Decorator, h Handler) Handler {
	for i := len(decorators) - 1; i >= 0; i-- {
		h = decorators[i](h)
	}
	return h
}
