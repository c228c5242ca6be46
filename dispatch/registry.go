package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/trialrun/activation"
	"github.com/haasonsaas/trialrun/audit"
	"github.com/haasonsaas/trialrun/experiment"
	"github.com/haasonsaas/trialrun/killswitch"
	"github.com/haasonsaas/trialrun/selection"
)

// Build-time configuration errors.
var (
	ErrDuplicateService  = errors.New("dispatch: service registered twice")
	ErrDuplicateProvider = errors.New("dispatch: selection provider id registered twice")
)

// registration is the runtime form of a definition: selection bound to
// concrete providers, replay targets resolved, decorator chain shared.
// Built once, immutable afterwards.
type registration struct {
	def        experiment.Definition
	selector   string
	sel        selection.Func
	defaultKey string

	// redirectKey is the effective redirect_default target.
	redirectKey string

	// replayOrder is the effective redirect_any order: the explicit
	// ReplayOrder when set, declared trial order otherwise.
	replayOrder []string
}

// Builder accumulates definitions and collaborators and constructs a
// Dispatcher. Build validates everything up front: a process with an invalid
// registry must not start.
type Builder struct {
	defs       []experiment.Definition
	sel        selection.Config
	naming     experiment.NamingConvention
	kill       killswitch.Provider
	decorators []Decorator
	sinks      []audit.Sink
	now        func() time.Time
	logger     *slog.Logger

	errs []error
}

// NewBuilder returns an empty registry builder.
func NewBuilder() *Builder {
	return &Builder{
		sel:    selection.Config{Providers: make(map[string]selection.Provider)},
		naming: experiment.DefaultNaming{},
	}
}

// Register adds an experiment definition.
func (b *Builder) Register(def experiment.Definition) *Builder {
	b.defs = append(b.defs, def)
	return b
}

// Flags sets the feature-flag source for boolean and variant modes.
func (b *Builder) Flags(src selection.FlagSource) *Builder {
	b.sel.Flags = src
	return b
}

// Config sets the configuration source for config-value mode.
func (b *Builder) Config(src selection.ConfigSource) *Builder {
	b.sel.Config = src
	return b
}

// Provider registers a custom selection-mode provider under its ModeID.
func (b *Builder) Provider(p selection.Provider) *Builder {
	id := p.ModeID()
	if _, ok := b.sel.Providers[id]; ok {
		b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrDuplicateProvider, id))
		return b
	}
	b.sel.Providers[id] = p
	return b
}

// Naming overrides the default selector naming convention.
func (b *Builder) Naming(nc experiment.NamingConvention) *Builder {
	b.naming = nc
	return b
}

// KillSwitch sets the kill-switch store. Defaults to an in-memory store.
func (b *Builder) KillSwitch(ks killswitch.Provider) *Builder {
	b.kill = ks
	return b
}

// Decorate appends decorators to the chain, in registration order.
func (b *Builder) Decorate(decorators ...Decorator) *Builder {
	b.decorators = append(b.decorators, decorators...)
	return b
}

// Audit appends assignment sinks.
func (b *Builder) Audit(sinks ...audit.Sink) *Builder {
	b.sinks = append(b.sinks, sinks...)
	return b
}

// Clock overrides the activation clock. Tests pin it.
func (b *Builder) Clock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Logger sets the diagnostic logger. Defaults to slog.Default.
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates all definitions, binds selection modes to providers, and
// returns the immutable dispatcher. All configuration errors are reported
// together.
func (b *Builder) Build() (*Dispatcher, error) {
	errs := append([]error(nil), b.errs...)
	regs := make(map[string]*registration, len(b.defs))

	for _, def := range b.defs {
		if err := def.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := regs[def.Service]; ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateService, def.Service))
			continue
		}

		selector := experiment.SelectorFor(def, b.naming)
		sel, err := selection.Bind(def, selector, b.sel)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		reg := &registration{
			def:        def,
			selector:   selector,
			sel:        sel,
			defaultKey: def.DefaultTrial().Key,
		}
		reg.redirectKey = def.RedirectKey
		if reg.redirectKey == "" {
			reg.redirectKey = reg.defaultKey
		}
		reg.replayOrder = def.ReplayOrder
		if reg.replayOrder == nil {
			reg.replayOrder = def.TrialKeys()
		}
		regs[def.Service] = reg
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	kill := b.kill
	if kill == nil {
		kill = killswitch.NewMemory()
	}

	var sink audit.Sink
	if len(b.sinks) > 0 {
		sink = audit.NewFanout(logger, b.sinks...)
	}

	return &Dispatcher{
		regs:       regs,
		decorators: append([]Decorator(nil), b.decorators...),
		kill:       kill,
		gate:       activation.Gate{Now: b.now},
		sink:       sink,
		logger:     logger.With("component", "dispatch"),
	}, nil
}
