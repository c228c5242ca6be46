package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/trialrun/activation"
	"github.com/haasonsaas/trialrun/audit"
	"github.com/haasonsaas/trialrun/killswitch"
)

// Call-time errors originating in the dispatcher itself (as opposed to
// errors returned by trial implementations).
var (
	ErrUnknownService = errors.New("dispatch: service not registered")
	ErrResultType     = errors.New("dispatch: result has unexpected type")
)

// Dispatcher routes calls for all registered services. It is safe for
// unbounded concurrent use: the registry is immutable after Build and the
// kill-switch store manages its own synchronization.
type Dispatcher struct {
	regs       map[string]*registration
	decorators []Decorator
	kill       killswitch.Provider
	gate       activation.Gate
	sink       audit.Sink
	logger     *slog.Logger
}

// Call dispatches a method invocation for service. The trial is chosen per
// the experiment's selection mode, subject to activation gating and kill
// switches; failures are handled per its error policy. Callers see either a
// successful result or the policy's terminal error, never internal plumbing
// errors.
func (d *Dispatcher) Call(ctx context.Context, service, method string, args ...any) (any, error) {
	reg, ok := d.regs[service]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	selected, start, forced := d.route(ctx, reg)
	result, executed, err := d.execute(ctx, reg, method, args, selected, start, forced)
	d.record(ctx, reg, method, selected, executed, err)
	return result, err
}

// route runs steps 2-4 of the dispatch algorithm: activation gate, whole-
// experiment kill switch, then selection with per-trial kill-switch
// override. It returns the selected key (for attribution) and the key the
// first attempt should execute. forced reports that the experiment as a
// whole is off (inactive or kill-switched): the default must run and no
// other trial may, so the error policy cannot replay.
func (d *Dispatcher) route(ctx context.Context, reg *registration) (selected, start string, forced bool) {
	service := reg.def.Service

	if !d.gate.IsActive(ctx, reg.def) {
		return reg.defaultKey, reg.defaultKey, true
	}
	if d.kill.ExperimentDisabled(service) {
		return reg.defaultKey, reg.defaultKey, true
	}

	key, err := reg.sel(ctx)
	if err != nil {
		// Selection failure is recovered locally: route to the default
		// trial and emit a diagnostic, never an error to the caller.
		d.logger.WarnContext(ctx, "trial selection failed, using default",
			"experiment", reg.def.Name,
			"service", service,
			"selector", reg.selector,
			"error", err)
		return reg.defaultKey, reg.defaultKey, false
	}

	if _, ok := reg.def.FindTrial(key); !ok {
		d.logger.DebugContext(ctx, "selected key not registered, using default",
			"experiment", reg.def.Name,
			"service", service,
			"selected", key)
		return key, reg.defaultKey, false
	}
	if d.kill.TrialDisabled(service, key) {
		return key, reg.defaultKey, false
	}
	return key, key, false
}

// record hands the completed assignment to the audit sink. Sinks are
// panic-isolated by the fanout; a nil sink disables auditing.
func (d *Dispatcher) record(ctx context.Context, reg *registration, method, selected, executed string, err error) {
	if d.sink == nil {
		return
	}
	a := audit.NewAssignment(reg.def.Name, reg.def.Service, method)
	a.SelectedKey = selected
	a.ExecutedKey = executed
	a.Fallback = executed != selected
	a.Err = err
	d.sink.Record(ctx, a)
}

// KillSwitch exposes the dispatcher's kill-switch store so operators can
// toggle experiments at runtime.
func (d *Dispatcher) KillSwitch() killswitch.Provider { return d.kill }

// Services returns the registered service identities.
func (d *Dispatcher) Services() []string {
	services := make([]string, 0, len(d.regs))
	for svc := range d.regs {
		services = append(services, svc)
	}
	return services
}

// Call dispatches through d and converts the result to T.
func Call[T any](ctx context.Context, d *Dispatcher, service, method string, args ...any) (T, error) {
	var zero T
	v, err := d.Call(ctx, service, method, args...)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q.%s returned %T", ErrResultType, service, method, v)
	}
	return t, nil
}
