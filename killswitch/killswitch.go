// Package killswitch provides runtime overrides that force experiments back
// to their default trial. The in-memory store is authoritative for dispatch
// decisions; persistent stores layer write-through durability on top of it.
package killswitch

// TrialRef identifies one trial of one experiment's service.
type TrialRef struct {
	Service string `yaml:"service" json:"service"`
	Trial   string `yaml:"trial" json:"trial"`
}

// State is the serializable snapshot shared by persistent stores and
// tooling: the set of disabled services and disabled (service, trial) pairs.
type State struct {
	Experiments []string   `yaml:"experiments" json:"experiments"`
	Trials      []TrialRef `yaml:"trials" json:"trials"`
}

// Provider is the kill-switch contract consulted on every dispatch. Reads
// must be safe under concurrent writers; toggling one switch must never
// block in-flight decisions for unrelated trials.
type Provider interface {
	// ExperimentDisabled reports whether the whole experiment registered
	// for the service is disabled.
	ExperimentDisabled(service string) bool

	// TrialDisabled reports whether one specific trial is disabled.
	TrialDisabled(service, trial string) bool

	DisableExperiment(service string)
	EnableExperiment(service string)
	DisableTrial(service, trial string)
	EnableTrial(service, trial string)

	// State snapshots the current switch sets.
	State() State

	// Restore replaces the switch sets wholesale.
	Restore(State)
}
