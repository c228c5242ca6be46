package activation

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/trialrun/experiment"
)

func TestIsActive(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	truePred := experiment.Predicate(func(ctx context.Context) bool { return true })
	falsePred := experiment.Predicate(func(ctx context.Context) bool { return false })

	tests := []struct {
		name string
		def  experiment.Definition
		want bool
	}{
		{"no bounds no predicate", experiment.Definition{}, true},
		{"inside window", experiment.Definition{ActiveFrom: &before, ActiveUntil: &after}, true},
		{"before window", experiment.Definition{ActiveFrom: &after}, false},
		{"after window", experiment.Definition{ActiveUntil: &before}, false},
		{"open start", experiment.Definition{ActiveUntil: &after}, true},
		{"open end", experiment.Definition{ActiveFrom: &before}, true},
		{"predicate true", experiment.Definition{Predicate: truePred}, true},
		{"predicate false", experiment.Definition{Predicate: falsePred}, false},
		{"window ok but predicate false", experiment.Definition{
			ActiveFrom:  &before,
			ActiveUntil: &after,
			Predicate:   falsePred,
		}, false},
		{"predicate true but window expired", experiment.Definition{
			ActiveUntil: &before,
			Predicate:   truePred,
		}, false},
	}

	gate := Gate{Now: func() time.Time { return now }}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.IsActive(context.Background(), tt.def); got != tt.want {
				t.Fatalf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGateBoundsAreInclusive(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	gate := Gate{Now: func() time.Time { return now }}
	def := experiment.Definition{ActiveFrom: &now, ActiveUntil: &now}
	if !gate.IsActive(context.Background(), def) {
		t.Fatalf("a window's exact bounds count as active")
	}
}
