// Package experiment defines experiments: named sets of candidate
// implementations ("trials") for a single service, together with the
// selection mode, error policy, and activation rules that govern how a
// dispatcher routes calls between them.
package experiment

import (
	"context"
	"time"
)

// SelectionMode identifies the strategy used to pick a trial key for a call.
type SelectionMode string

const (
	// ModeBooleanFlag evaluates a boolean feature flag; true routes to the
	// trial keyed "true", false to the trial keyed "false".
	ModeBooleanFlag SelectionMode = "boolean_flag"

	// ModeConfigValue reads a configuration value and uses it verbatim as
	// the trial key.
	ModeConfigValue SelectionMode = "config_value"

	// ModeVariantFlag evaluates a multivariate flag whose value is the
	// trial key.
	ModeVariantFlag SelectionMode = "variant_flag"

	// ModeSticky assigns the caller's subject identifier to a trial with a
	// stable hash, so the same subject always lands on the same trial while
	// the trial set is unchanged.
	ModeSticky SelectionMode = "sticky"

	// ModeCustom delegates trial selection to a registered provider,
	// identified by Definition.ModeID.
	ModeCustom SelectionMode = "custom"
)

// ErrorPolicy governs what happens when the selected trial's execution fails.
type ErrorPolicy string

const (
	// PolicyThrow propagates the selected trial's error unchanged.
	PolicyThrow ErrorPolicy = "throw"

	// PolicyRedirectDefault replays the call once against the default trial
	// (or an explicit redirect target) and returns its outcome. If the
	// replay also fails, the replay's error propagates, not the original.
	PolicyRedirectDefault ErrorPolicy = "redirect_default"

	// PolicyRedirectAny replays the call against the remaining trials in
	// declared order, stopping at the first success. No trial runs twice;
	// if all fail, the last error propagates.
	PolicyRedirectAny ErrorPolicy = "redirect_any"
)

// Impl is one concrete implementation of the routed service. The dispatcher
// hands it the method name and the original call arguments; it returns the
// method result. Implementations backed by an interface value typically
// switch on method and delegate.
type Impl func(ctx context.Context, method string, args []any) (any, error)

// Trial is one candidate implementation registered under a key.
type Trial struct {
	// Key identifies the trial within its experiment. Case-sensitive,
	// unique, non-empty.
	Key string

	// Default marks the permanent fallback target. Exactly one trial per
	// experiment must be the default.
	Default bool

	// Impl executes calls routed to this trial.
	Impl Impl
}

// Predicate is an activation check evaluated per call. A false result routes
// the call to the default trial.
type Predicate func(ctx context.Context) bool

// Definition describes one experiment. Definitions are authored once, passed
// to a dispatch registry builder, and never mutated afterwards.
type Definition struct {
	// Name is the logical experiment identifier, unique within a registry.
	Name string

	// Service identifies the routed interface. It is the registry key: one
	// definition per service.
	Service string

	// Trials lists the candidate implementations in declared order. The
	// order is meaningful: sticky assignment partitions over it and
	// redirect_any replays follow it.
	Trials []Trial

	// Mode selects the trial-selection strategy.
	Mode SelectionMode

	// Selector is the flag or configuration key consulted by the selection
	// mode. When empty, a NamingConvention derives a default from Service.
	Selector string

	// ModeID names the registered provider used when Mode is ModeCustom.
	ModeID string

	// Policy governs failure handling for trial execution.
	Policy ErrorPolicy

	// RedirectKey optionally overrides the redirect_default target. When
	// empty, the default trial is the target.
	RedirectKey string

	// ReplayOrder optionally overrides the redirect_any replay order. When
	// nil, declared trial order is used. When set, it must be non-empty and
	// reference registered keys.
	ReplayOrder []string

	// ActiveFrom and ActiveUntil bound the activation window. Either or
	// both may be nil (unbounded).
	ActiveFrom  *time.Time
	ActiveUntil *time.Time

	// Predicate is an optional per-call activation check, ANDed with the
	// window.
	Predicate Predicate

	// Metadata carries free-form notes (owner, ticket, rollback plan). The
	// dispatch core does not interpret it.
	Metadata map[string]string
}

// DefaultTrial returns the trial marked default. It panics if Validate has
// not been satisfied; callers hold validated definitions.
func (d Definition) DefaultTrial() Trial {
	for _, t := range d.Trials {
		if t.Default {
			return t
		}
	}
	panic("experiment: definition has no default trial")
}

// TrialKeys returns the trial keys in declared order.
func (d Definition) TrialKeys() []string {
	keys := make([]string, 0, len(d.Trials))
	for _, t := range d.Trials {
		keys = append(keys, t.Key)
	}
	return keys
}

// FindTrial returns the trial registered under key.
func (d Definition) FindTrial(key string) (Trial, bool) {
	for _, t := range d.Trials {
		if t.Key == key {
			return t, true
		}
	}
	return Trial{}, false
}
