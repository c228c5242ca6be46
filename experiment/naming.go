package experiment

// NamingConvention derives default selector names from a service identity,
// used when a definition omits an explicit Selector. Implementations must be
// pure functions of the service string.
type NamingConvention interface {
	// FeatureFlagName names the boolean flag consulted by ModeBooleanFlag.
	FeatureFlagName(service string) string

	// VariantFlagName names the multivariate flag consulted by
	// ModeVariantFlag.
	VariantFlagName(service string) string

	// ConfigKey names the configuration entry consulted by ModeConfigValue.
	ConfigKey(service string) string
}

// DefaultNaming is the stock convention:
//
//	feature flag   <service>.enabled
//	variant flag   <service>.variant
//	config key     experiments.<service>
type DefaultNaming struct{}

func (DefaultNaming) FeatureFlagName(service string) string { return service + ".enabled" }
func (DefaultNaming) VariantFlagName(service string) string { return service + ".variant" }
func (DefaultNaming) ConfigKey(service string) string       { return "experiments." + service }

// SelectorFor resolves the effective selector name for a definition: the
// explicit Selector when present, otherwise the convention's default for the
// definition's mode. Sticky and custom modes have no flag to name; for those
// the explicit Selector (possibly empty) is returned as-is.
func SelectorFor(d Definition, nc NamingConvention) string {
	if d.Selector != "" || nc == nil {
		return d.Selector
	}
	switch d.Mode {
	case ModeBooleanFlag:
		return nc.FeatureFlagName(d.Service)
	case ModeVariantFlag:
		return nc.VariantFlagName(d.Service)
	case ModeConfigValue:
		return nc.ConfigKey(d.Service)
	}
	return d.Selector
}
