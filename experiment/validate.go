package experiment

import (
	"errors"
	"fmt"
)

// Validation failures surfaced by Validate and by registry builds.
var (
	ErrEmptyName         = errors.New("experiment name is required")
	ErrEmptyService      = errors.New("service identity is required")
	ErrNoTrials          = errors.New("at least one trial is required")
	ErrNoDefaultTrial    = errors.New("no trial is marked default")
	ErrMultipleDefaults  = errors.New("more than one trial is marked default")
	ErrEmptyTrialKey     = errors.New("trial key is empty")
	ErrDuplicateTrialKey = errors.New("duplicate trial key")
	ErrNilImpl           = errors.New("trial has no implementation")
	ErrUnknownTrialKey   = errors.New("references an unregistered trial key")
	ErrEmptyReplayOrder  = errors.New("explicit replay order is empty")
	ErrMissingModeID     = errors.New("custom selection mode requires a provider id")
	ErrUnknownMode       = errors.New("unknown selection mode")
	ErrUnknownPolicy     = errors.New("unknown error policy")
)

// Validate checks a definition for internal consistency. Registry builds call
// this for every definition and refuse to construct on any failure, so an
// invalid experiment is a startup error, never a call-time surprise.
func (d Definition) Validate() error {
	if d.Name == "" {
		return ErrEmptyName
	}
	if d.Service == "" {
		return d.fail(ErrEmptyService)
	}
	if len(d.Trials) == 0 {
		return d.fail(ErrNoTrials)
	}

	defaults := 0
	seen := make(map[string]bool, len(d.Trials))
	for _, t := range d.Trials {
		if t.Key == "" {
			return d.fail(ErrEmptyTrialKey)
		}
		if seen[t.Key] {
			return d.fail(fmt.Errorf("%w: %q", ErrDuplicateTrialKey, t.Key))
		}
		seen[t.Key] = true
		if t.Impl == nil {
			return d.fail(fmt.Errorf("%w: %q", ErrNilImpl, t.Key))
		}
		if t.Default {
			defaults++
		}
	}
	switch {
	case defaults == 0:
		return d.fail(ErrNoDefaultTrial)
	case defaults > 1:
		return d.fail(ErrMultipleDefaults)
	}

	switch d.Mode {
	case ModeBooleanFlag, ModeConfigValue, ModeVariantFlag, ModeSticky:
	case ModeCustom:
		if d.ModeID == "" {
			return d.fail(ErrMissingModeID)
		}
	default:
		return d.fail(fmt.Errorf("%w: %q", ErrUnknownMode, d.Mode))
	}

	switch d.Policy {
	case PolicyThrow, PolicyRedirectDefault:
	case PolicyRedirectAny:
		if d.ReplayOrder != nil && len(d.ReplayOrder) == 0 {
			return d.fail(ErrEmptyReplayOrder)
		}
	default:
		return d.fail(fmt.Errorf("%w: %q", ErrUnknownPolicy, d.Policy))
	}

	if d.RedirectKey != "" && !seen[d.RedirectKey] {
		return d.fail(fmt.Errorf("redirect target %w: %q", ErrUnknownTrialKey, d.RedirectKey))
	}
	for _, key := range d.ReplayOrder {
		if !seen[key] {
			return d.fail(fmt.Errorf("replay order %w: %q", ErrUnknownTrialKey, key))
		}
	}

	return nil
}

func (d Definition) fail(err error) error {
	return fmt.Errorf("experiment %q: %w", d.Name, err)
}
