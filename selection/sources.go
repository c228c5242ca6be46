// Package selection computes the trial key for a call: it binds an
// experiment's selection mode to concrete flag, configuration, and custom
// providers at registry build time and evaluates the bound function per call.
package selection

import (
	"context"
	"errors"
	"fmt"
)

// FlagSource resolves feature flags. Implementations typically wrap a flag
// service client; evaluation failures are reported as errors, which the
// dispatcher converts into default-trial routing.
type FlagSource interface {
	// Bool evaluates a boolean flag by name.
	Bool(ctx context.Context, name string) (bool, error)

	// Variant evaluates a multivariate flag by name and returns its variant
	// key.
	Variant(ctx context.Context, name string) (string, error)
}

// ConfigSource resolves configuration values by key.
type ConfigSource interface {
	Value(ctx context.Context, key string) (string, error)
}

// Provider implements a custom selection mode, registered by id at registry
// build time. Resolve maps the experiment's selector name to a trial key.
type Provider interface {
	ModeID() string
	Resolve(ctx context.Context, selector string) (string, error)
}

// ErrNotFound reports a flag or configuration key missing from its source.
var ErrNotFound = errors.New("selection: not found")

// StaticFlags is an in-memory FlagSource, useful in tests and for processes
// that load flag state at startup.
type StaticFlags struct {
	Bools    map[string]bool
	Variants map[string]string
}

func (s StaticFlags) Bool(_ context.Context, name string) (bool, error) {
	v, ok := s.Bools[name]
	if !ok {
		return false, fmt.Errorf("%w: flag %q", ErrNotFound, name)
	}
	return v, nil
}

func (s StaticFlags) Variant(_ context.Context, name string) (string, error) {
	v, ok := s.Variants[name]
	if !ok {
		return "", fmt.Errorf("%w: variant flag %q", ErrNotFound, name)
	}
	return v, nil
}

// StaticConfig is an in-memory ConfigSource.
type StaticConfig map[string]string

func (s StaticConfig) Value(_ context.Context, key string) (string, error) {
	v, ok := s[key]
	if !ok {
		return "", fmt.Errorf("%w: config key %q", ErrNotFound, key)
	}
	return v, nil
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	ID string
	Fn func(ctx context.Context, selector string) (string, error)
}

func (p ProviderFunc) ModeID() string { return p.ID }

func (p ProviderFunc) Resolve(ctx context.Context, selector string) (string, error) {
	return p.Fn(ctx, selector)
}
