package killswitch

import (
	"sort"
	"sync"
)

// Memory is the in-process kill-switch store: two sets behind an RWMutex.
// Reads are lock-shared so dispatch never contends with other readers;
// writes are rare and brief.
type Memory struct {
	mu          sync.RWMutex
	experiments map[string]struct{}
	trials      map[TrialRef]struct{}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		experiments: make(map[string]struct{}),
		trials:      make(map[TrialRef]struct{}),
	}
}

func (m *Memory) ExperimentDisabled(service string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.experiments[service]
	return ok
}

func (m *Memory) TrialDisabled(service, trial string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.trials[TrialRef{Service: service, Trial: trial}]
	return ok
}

func (m *Memory) DisableExperiment(service string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.experiments[service] = struct{}{}
}

func (m *Memory) EnableExperiment(service string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.experiments, service)
}

func (m *Memory) DisableTrial(service, trial string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trials[TrialRef{Service: service, Trial: trial}] = struct{}{}
}

func (m *Memory) EnableTrial(service, trial string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trials, TrialRef{Service: service, Trial: trial})
}

func (m *Memory) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := State{
		Experiments: make([]string, 0, len(m.experiments)),
		Trials:      make([]TrialRef, 0, len(m.trials)),
	}
	for svc := range m.experiments {
		st.Experiments = append(st.Experiments, svc)
	}
	for ref := range m.trials {
		st.Trials = append(st.Trials, ref)
	}
	sort.Strings(st.Experiments)
	sort.Slice(st.Trials, func(i, j int) bool {
		if st.Trials[i].Service != st.Trials[j].Service {
			return st.Trials[i].Service < st.Trials[j].Service
		}
		return st.Trials[i].Trial < st.Trials[j].Trial
	})
	return st
}

func (m *Memory) Restore(st State) {
	experiments := make(map[string]struct{}, len(st.Experiments))
	for _, svc := range st.Experiments {
		experiments[svc] = struct{}{}
	}
	trials := make(map[TrialRef]struct{}, len(st.Trials))
	for _, ref := range st.Trials {
		trials[ref] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.experiments = experiments
	m.trials = trials
}
