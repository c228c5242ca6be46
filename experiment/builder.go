package experiment

import "time"

// Builder assembles a Definition fluently. Terminal call is Build, which
// validates the result.
//
//	def, err := experiment.New("checkout-v2").
//	    Service("CheckoutService").
//	    DefaultTrial("control", legacyImpl).
//	    Trial("true", rewriteImpl).
//	    BooleanFlag("UseV2").
//	    OnError(experiment.PolicyRedirectDefault).
//	    Build()
type Builder struct {
	def Definition
}

// New starts a builder for the named experiment.
func New(name string) *Builder {
	return &Builder{def: Definition{
		Name:   name,
		Mode:   ModeBooleanFlag,
		Policy: PolicyThrow,
	}}
}

// Service sets the routed service identity.
func (b *Builder) Service(service string) *Builder {
	b.def.Service = service
	return b
}

// Trial registers a candidate implementation under key.
func (b *Builder) Trial(key string, impl Impl) *Builder {
	b.def.Trials = append(b.def.Trials, Trial{Key: key, Impl: impl})
	return b
}

// DefaultTrial registers the default (control) implementation under key.
func (b *Builder) DefaultTrial(key string, impl Impl) *Builder {
	b.def.Trials = append(b.def.Trials, Trial{Key: key, Default: true, Impl: impl})
	return b
}

// BooleanFlag selects trials by a boolean feature flag. An empty name defers
// to the registry's naming convention.
func (b *Builder) BooleanFlag(name string) *Builder {
	b.def.Mode = ModeBooleanFlag
	b.def.Selector = name
	return b
}

// ConfigValue selects trials by a configuration value used verbatim as the
// trial key.
func (b *Builder) ConfigValue(key string) *Builder {
	b.def.Mode = ModeConfigValue
	b.def.Selector = key
	return b
}

// VariantFlag selects trials by a multivariate flag whose value is the trial
// key.
func (b *Builder) VariantFlag(name string) *Builder {
	b.def.Mode = ModeVariantFlag
	b.def.Selector = name
	return b
}

// Sticky selects trials by a stable hash of the call's subject identifier.
func (b *Builder) Sticky() *Builder {
	b.def.Mode = ModeSticky
	return b
}

// Custom delegates selection to the provider registered under modeID.
func (b *Builder) Custom(modeID, selector string) *Builder {
	b.def.Mode = ModeCustom
	b.def.ModeID = modeID
	b.def.Selector = selector
	return b
}

// OnError sets the error policy.
func (b *Builder) OnError(policy ErrorPolicy) *Builder {
	b.def.Policy = policy
	return b
}

// RedirectTo overrides the redirect_default target trial.
func (b *Builder) RedirectTo(key string) *Builder {
	b.def.RedirectKey = key
	return b
}

// ReplayOrder overrides the redirect_any replay order.
func (b *Builder) ReplayOrder(keys ...string) *Builder {
	b.def.ReplayOrder = keys
	return b
}

// ActiveFrom sets the start of the activation window.
func (b *Builder) ActiveFrom(t time.Time) *Builder {
	b.def.ActiveFrom = &t
	return b
}

// ActiveUntil sets the end of the activation window.
func (b *Builder) ActiveUntil(t time.Time) *Builder {
	b.def.ActiveUntil = &t
	return b
}

// When adds a per-call activation predicate.
func (b *Builder) When(pred Predicate) *Builder {
	b.def.Predicate = pred
	return b
}

// Meta attaches a free-form metadata entry.
func (b *Builder) Meta(key, value string) *Builder {
	if b.def.Metadata == nil {
		b.def.Metadata = make(map[string]string)
	}
	b.def.Metadata[key] = value
	return b
}

// Build validates and returns the definition.
func (b *Builder) Build() (Definition, error) {
	if err := b.def.Validate(); err != nil {
		return Definition{}, err
	}
	return b.def, nil
}
