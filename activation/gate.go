// Package activation decides whether an experiment is live at all. An
// inactive experiment is fully transparent: the dispatcher routes straight to
// the default trial without consulting selection or kill switches.
package activation

import (
	"context"
	"time"

	"github.com/haasonsaas/trialrun/experiment"
)

// Gate evaluates an experiment's activation window and predicate.
type Gate struct {
	// Now supplies the current time; nil means time.Now. Tests pin it.
	Now func() time.Time
}

// IsActive reports whether the experiment is live for this call: the current
// time is within [ActiveFrom, ActiveUntil] and the predicate, when present,
// returns true. Both conditions are ANDed.
func (g Gate) IsActive(ctx context.Context, def experiment.Definition) bool {
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	if def.ActiveFrom != nil && now.Before(*def.ActiveFrom) {
		return false
	}
	if def.ActiveUntil != nil && now.After(*def.ActiveUntil) {
		return false
	}
	if def.Predicate != nil && !def.Predicate(ctx) {
		return false
	}
	return true
}
