package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/trialrun/audit"
	"github.com/haasonsaas/trialrun/experiment"
	"github.com/haasonsaas/trialrun/killswitch"
	"github.com/haasonsaas/trialrun/selection"
)

func staticImpl(v any) experiment.Impl {
	return func(ctx context.Context, method string, args []any) (any, error) {
		return v, nil
	}
}

func failingImpl(err error) experiment.Impl {
	return func(ctx context.Context, method string, args []any) (any, error) {
		return nil, err
	}
}

// captureSink records assignments synchronously for assertions.
type captureSink struct {
	assignments []audit.Assignment
}

func (c *captureSink) Record(_ context.Context, a audit.Assignment) {
	c.assignments = append(c.assignments, a)
}

func (c *captureSink) last(t *testing.T) audit.Assignment {
	t.Helper()
	if len(c.assignments) == 0 {
		t.Fatalf("no assignments recorded")
	}
	return c.assignments[len(c.assignments)-1]
}

func checkoutDef(t *testing.T, policy experiment.ErrorPolicy, v2 experiment.Impl) experiment.Definition {
	t.Helper()
	def, err := experiment.New("checkout-v2").
		Service("CheckoutService").
		DefaultTrial("control", staticImpl("legacy")).
		Trial("true", v2).
		BooleanFlag("UseV2").
		OnError(policy).
		Build()
	if err != nil {
		t.Fatalf("build definition: %v", err)
	}
	return def
}

func TestDispatchFlagFalseRunsDefault(t *testing.T) {
	def := checkoutDef(t, experiment.PolicyThrow, staticImpl("v2"))
	sink := &captureSink{}
	d, err := NewBuilder().
		Register(def).
		Flags(selection.StaticFlags{Bools: map[string]bool{"UseV2": false}}).
		Audit(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := d.Call(context.Background(), "CheckoutService", "Charge", 42)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != "legacy" {
		t.Fatalf("got %v, want legacy", got)
	}
	a := sink.last(t)
	if a.SelectedKey != "false" || a.ExecutedKey != "control" || !a.Fallback {
		t.Fatalf("assignment = %+v", a)
	}
}

func TestDispatchFlagTrueRunsTrial(t *testing.T) {
	def := checkoutDef(t, experiment.PolicyThrow, staticImpl("v2"))
	d, err := NewBuilder().
		Register(def).
		Flags(selection.StaticFlags{Bools: map[string]bool{"UseV2": true}}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := d.Call(context.Background(), "CheckoutService", "Charge")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != "v2" {
		t.Fatalf("got %v, want v2", got)
	}
}

func TestDispatchRedirectDefaultOnFailure(t *testing.T) {
	boom := errors.New("boom")
	def := checkoutDef(t, experiment.PolicyRedirectDefault, failingImpl(boom))
	sink := &captureSink{}
	d, err := NewBuilder().
		Register(def).
		Flags(selection.StaticFlags{Bools: map[string]bool{"UseV2": true}}).
		Audit(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := d.Call(context.Background(), "CheckoutService", "Charge")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != "legacy" {
		t.Fatalf("got %v, want legacy", got)
	}
	a := sink.last(t)
	if a.SelectedKey != "true" || a.ExecutedKey != "control" || !a.Fallback {
		t.Fatalf("assignment = %+v", a)
	}
}

func TestDispatchKillSwitchForcesDefault(t *testing.T) {
	invoked := false
	def := checkoutDef(t, experiment.PolicyThrow, func(ctx context.Context, method string, args []any) (any, error) {
		invoked = true
		return "v2", nil
	})
	ks := killswitch.NewMemory()
	ks.DisableExperiment("CheckoutService")
	d, err := NewBuilder().
		Register(def).
		Flags(selection.StaticFlags{Bools: map[string]bool{"UseV2": true}}).
		KillSwitch(ks).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := d.Call(context.Background(), "CheckoutService", "Charge")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != "legacy" {
		t.Fatalf("got %v, want legacy", got)
	}
	if invoked {
		t.Fatalf("disabled experiment still invoked the trial")
	}
}

func TestDispatchExpiredWindowForcesDefault(t *testing.T) {
	def := checkoutDef(t, experiment.PolicyThrow, staticImpl("v2"))
	past := time.Now().Add(-time.Hour)
	def.ActiveUntil = &past

	d, err := NewBuilder().
		Register(def).
		Flags(selection.StaticFlags{Bools: map[string]bool{"UseV2": true}}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := d.Call(context.Background(), "CheckoutService", "Charge")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != "legacy" {
		t.Fatalf("got %v, want legacy", got)
	}
}

func TestDispatchTrialKillSwitchKeepsSelectedKeyForAudit(t *testing.T) {
	def := checkoutDef(t, experiment.PolicyThrow, staticImpl("v2"))
	ks := killswitch.NewMemory()
	ks.DisableTrial("CheckoutService", "true")

	var observed []string
	observeSelected := func(next Handler) Handler {
		return func(ctx context.Context, inv Invocation) (any, error) {
			observed = append(observed, inv.SelectedKey+"->"+inv.TrialKey)
			return next(ctx, inv)
		}
	}

	sink := &captureSink{}
	d, err := NewBuilder().
		Register(def).
		Flags(selection.StaticFlags{Bools: map[string]bool{"UseV2": true}}).
		KillSwitch(ks).
		Decorate(observeSelected).
		Audit(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := d.Call(context.Background(), "CheckoutService", "Charge")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != "legacy" {
		t.Fatalf("got %v, want legacy", got)
	}
	if len(observed) != 1 || observed[0] != "true->control" {
		t.Fatalf("decorator observed %v", observed)
	}
	a := sink.last(t)
	if a.SelectedKey != "true" || a.ExecutedKey != "control" || !a.Fallback {
		t.Fatalf("assignment = %+v", a)
	}
}

func TestDispatchSelectionErrorFallsBackToDefault(t *testing.T) {
	def := checkoutDef(t, experiment.PolicyThrow, staticImpl("v2"))
	d, err := NewBuilder().
		Register(def).
		Flags(selection.StaticFlags{}). // flag missing: evaluation error
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := d.Call(context.Background(), "CheckoutService", "Charge")
	if err != nil {
		t.Fatalf("selection failure must not surface: %v", err)
	}
	if got != "legacy" {
		t.Fatalf("got %v, want legacy", got)
	}
}

func TestDispatchUnregisteredSelectedKeyFallsBack(t *testing.T) {
	def, err := experiment.New("renderer").
		Service("Renderer").
		DefaultTrial("v1", staticImpl("v1")).
		Trial("v2", staticImpl("v2")).
		ConfigValue("renderer.impl").
		Build()
	if err != nil {
		t.Fatalf("build definition: %v", err)
	}
	sink := &captureSink{}
	d, err := NewBuilder().
		Register(def).
		Config(selection.StaticConfig{"renderer.impl": "v9"}).
		Audit(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := d.Call(context.Background(), "Renderer", "Render")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != "v1" {
		t.Fatalf("got %v, want v1", got)
	}
	a := sink.last(t)
	if a.SelectedKey != "v9" || a.ExecutedKey != "v1" {
		t.Fatalf("assignment = %+v", a)
	}
}

func TestDispatchUnknownService(t *testing.T) {
	d, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := d.Call(context.Background(), "Nope", "Do"); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("err = %v, want ErrUnknownService", err)
	}
}

func TestTypedCall(t *testing.T) {
	def := checkoutDef(t, experiment.PolicyThrow, staticImpl("v2"))
	d, err := NewBuilder().
		Register(def).
		Flags(selection.StaticFlags{Bools: map[string]bool{"UseV2": false}}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := Call[string](context.Background(), d, "CheckoutService", "Charge")
	if err != nil {
		t.Fatalf("typed call: %v", err)
	}
	if got != "legacy" {
		t.Fatalf("got %q, want legacy", got)
	}

	if _, err := Call[int](context.Background(), d, "CheckoutService", "Charge"); !errors.Is(err, ErrResultType) {
		t.Fatalf("err = %v, want ErrResultType", err)
	}
}

func TestDispatchStickyIsDeterministic(t *testing.T) {
	def, err := experiment.New("ranker").
		Service("Ranker").
		DefaultTrial("control", staticImpl("control")).
		Trial("ml", staticImpl("ml")).
		Trial("heuristic", staticImpl("heuristic")).
		Sticky().
		Build()
	if err != nil {
		t.Fatalf("build definition: %v", err)
	}
	sink := &captureSink{}
	d, err := NewBuilder().Register(def).Audit(sink).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx := selection.WithSubject(context.Background(), "user-42")
	first, err := d.Call(ctx, "Ranker", "Rank")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	for i := 0; i < 20; i++ {
		got, err := d.Call(ctx, "Ranker", "Rank")
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if got != first {
			t.Fatalf("sticky assignment changed: %v then %v", first, got)
		}
	}

	// No subject: selection fails, default runs.
	got, err := d.Call(context.Background(), "Ranker", "Rank")
	if err != nil {
		t.Fatalf("dispatch without subject: %v", err)
	}
	if got != "control" {
		t.Fatalf("got %v, want control", got)
	}
}

func TestDispatchAuditSinkPanicIsIsolated(t *testing.T) {
	def := checkoutDef(t, experiment.PolicyThrow, staticImpl("v2"))
	panicking := audit.SinkFunc(func(ctx context.Context, a audit.Assignment) {
		panic("sink bug")
	})
	sink := &captureSink{}
	d, err := NewBuilder().
		Register(def).
		Flags(selection.StaticFlags{Bools: map[string]bool{"UseV2": false}}).
		Audit(panicking, sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := d.Call(context.Background(), "CheckoutService", "Charge")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != "legacy" {
		t.Fatalf("got %v, want legacy", got)
	}
	if len(sink.assignments) != 1 {
		t.Fatalf("later sink not reached after panic: %d assignments", len(sink.assignments))
	}
}
