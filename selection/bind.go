package selection

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/haasonsaas/trialrun/experiment"
)

// Func is a selection function bound to a single experiment: it returns the
// trial key selected for the current call. A non-nil error means selection
// could not be evaluated; the dispatcher recovers by routing to the default
// trial, it never surfaces to the caller.
type Func func(ctx context.Context) (string, error)

// Config names the providers available to Bind.
type Config struct {
	Flags     FlagSource
	Config    ConfigSource
	Providers map[string]Provider
}

// Binding failures. These are configuration errors raised at registry build
// time, never during dispatch.
var (
	ErrNoFlagSource    = errors.New("selection: no flag source configured")
	ErrNoConfigSource  = errors.New("selection: no config source configured")
	ErrUnknownProvider = errors.New("selection: unknown custom mode provider")
	ErrNoSubject       = errors.New("selection: no subject in context")
)

// Bind resolves the definition's selection mode against cfg and returns the
// bound per-call function. selector is the effective selector name (explicit
// or convention-derived). Unresolvable modes fail here, at build time.
func Bind(def experiment.Definition, selector string, cfg Config) (Func, error) {
	switch def.Mode {
	case experiment.ModeBooleanFlag:
		if cfg.Flags == nil {
			return nil, fmt.Errorf("%w (experiment %q)", ErrNoFlagSource, def.Name)
		}
		flags := cfg.Flags
		return func(ctx context.Context) (string, error) {
			v, err := flags.Bool(ctx, selector)
			if err != nil {
				return "", err
			}
			return strconv.FormatBool(v), nil
		}, nil

	case experiment.ModeVariantFlag:
		if cfg.Flags == nil {
			return nil, fmt.Errorf("%w (experiment %q)", ErrNoFlagSource, def.Name)
		}
		flags := cfg.Flags
		return func(ctx context.Context) (string, error) {
			return flags.Variant(ctx, selector)
		}, nil

	case experiment.ModeConfigValue:
		if cfg.Config == nil {
			return nil, fmt.Errorf("%w (experiment %q)", ErrNoConfigSource, def.Name)
		}
		conf := cfg.Config
		return func(ctx context.Context) (string, error) {
			return conf.Value(ctx, selector)
		}, nil

	case experiment.ModeSticky:
		name := def.Name
		keys := def.TrialKeys()
		return func(ctx context.Context) (string, error) {
			subject, ok := SubjectFrom(ctx)
			if !ok {
				return "", fmt.Errorf("%w (experiment %q)", ErrNoSubject, name)
			}
			return Assign(subject, name, keys), nil
		}, nil

	case experiment.ModeCustom:
		p, ok := cfg.Providers[def.ModeID]
		if !ok {
			return nil, fmt.Errorf("%w: %q (experiment %q)", ErrUnknownProvider, def.ModeID, def.Name)
		}
		return func(ctx context.Context) (string, error) {
			return p.Resolve(ctx, selector)
		}, nil
	}

	return nil, fmt.Errorf("experiment %q: %w: %q", def.Name, experiment.ErrUnknownMode, def.Mode)
}
