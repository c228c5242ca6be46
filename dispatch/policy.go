package dispatch

import (
	"context"

	"github.com/haasonsaas/trialrun/experiment"
)

// execute runs the error-policy state machine for one call. It returns the
// result, the key of the trial whose outcome was returned to the caller, and
// that trial's terminal error, if any.
//
// Every individual attempt passes through the full decorator chain with its
// own Invocation, so decorators observe each replay separately.
//
// Replays honor the same routing constraints as the first attempt: a forced
// default (inactive experiment, whole-experiment kill switch) admits no
// other trial, and a kill-switched trial never receives replay traffic.
func (d *Dispatcher) execute(ctx context.Context, reg *registration, method string, args []any, selected, start string, forced bool) (any, string, error) {
	result, err := d.attempt(ctx, reg, method, args, selected, start)
	if err == nil {
		return result, start, nil
	}
	if forced {
		return nil, start, err
	}

	switch reg.def.Policy {
	case experiment.PolicyRedirectDefault:
		target := reg.redirectKey
		if target == start {
			// The failing trial is already the redirect target; replaying
			// it would run the same trial twice.
			return nil, start, err
		}
		if d.kill.TrialDisabled(reg.def.Service, target) {
			return nil, start, err
		}
		result, err = d.attempt(ctx, reg, method, args, selected, target)
		// Success or not, the redirect target's outcome is the caller's
		// outcome: its error supersedes the original.
		return result, target, err

	case experiment.PolicyRedirectAny:
		attempted := map[string]bool{start: true}
		lastKey, lastErr := start, err
		for _, key := range reg.replayOrder {
			if attempted[key] || d.kill.TrialDisabled(reg.def.Service, key) {
				continue
			}
			attempted[key] = true
			result, err = d.attempt(ctx, reg, method, args, selected, key)
			if err == nil {
				return result, key, nil
			}
			lastKey, lastErr = key, err
		}
		return nil, lastKey, lastErr
	}

	// PolicyThrow: propagate unchanged.
	return nil, start, err
}

// attempt executes one trial through the decorator chain.
func (d *Dispatcher) attempt(ctx context.Context, reg *registration, method string, args []any, selected, key string) (any, error) {
	trial, ok := reg.def.FindTrial(key)
	if !ok {
		// Unreachable for validated registrations; route and the replay
		// sets only produce registered keys.
		return nil, experiment.ErrUnknownTrialKey
	}

	inv := Invocation{
		Experiment:  reg.def.Name,
		Service:     reg.def.Service,
		Method:      method,
		TrialKey:    key,
		SelectedKey: selected,
		Args:        args,
	}
	h := chain(d.decorators, func(ctx context.Context, inv Invocation) (any, error) {
		return trial.Impl(ctx, inv.Method, inv.Args)
	})
	return h(ctx, inv)
}
