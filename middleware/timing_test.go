package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/haasonsaas/trialrun/dispatch"
)

func TestTimingReportsEveryAttempt(t *testing.T) {
	type sample struct {
		trial   string
		elapsed time.Duration
		failed  bool
	}
	var samples []sample
	dec := Timing(func(inv dispatch.Invocation, elapsed time.Duration, err error) {
		samples = append(samples, sample{inv.TrialKey, elapsed, err != nil})
	})

	h := dec(func(ctx context.Context, inv dispatch.Invocation) (any, error) {
		time.Sleep(time.Millisecond)
		if inv.TrialKey == "bad" {
			return nil, errors.New("boom")
		}
		return "ok", nil
	})

	if _, err := h(context.Background(), dispatch.Invocation{TrialKey: "good"}); err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if _, err := h(context.Background(), dispatch.Invocation{TrialKey: "bad"}); err == nil {
		t.Fatalf("expected attempt error")
	}

	if len(samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(samples))
	}
	if samples[0].elapsed <= 0 {
		t.Fatalf("elapsed not measured: %v", samples[0].elapsed)
	}
	if samples[0].failed || !samples[1].failed {
		t.Fatalf("outcomes misreported: %+v", samples)
	}
}

func TestErrorLoggingAttributesFailures(t *testing.T) {
	var buf bytes.Buffer
	dec := ErrorLogging(slog.New(slog.NewJSONHandler(&buf, nil)))

	h := dec(func(ctx context.Context, inv dispatch.Invocation) (any, error) {
		return nil, errors.New("boom")
	})
	inv := dispatch.Invocation{
		Experiment:  "checkout-v2",
		Service:     "CheckoutService",
		Method:      "Charge",
		TrialKey:    "control",
		SelectedKey: "true",
	}
	if _, err := h(context.Background(), inv); err == nil {
		t.Fatalf("expected attempt error")
	}

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if record["level"] != "ERROR" {
		t.Fatalf("level = %v", record["level"])
	}
	if record["trial"] != "control" || record["selected"] != "true" {
		t.Fatalf("attribution missing: %v", record)
	}
	if record["error"] != "boom" {
		t.Fatalf("error missing: %v", record)
	}
}
