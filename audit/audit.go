// Package audit records trial assignments: which trial was selected for a
// call, which one actually executed, and how the call ended. Sinks are
// fire-and-forget collaborators; nothing they do can fail a dispatch.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Assignment is emitted once per completed dispatch.
type Assignment struct {
	// ID is a unique event identifier.
	ID string `json:"id"`

	// Experiment and Service identify the routed experiment.
	Experiment string `json:"experiment"`
	Service    string `json:"service"`

	// Method is the invoked method name.
	Method string `json:"method"`

	// SelectedKey is the trial key the selection mode chose (or the default
	// key when gating or selection failure forced it).
	SelectedKey string `json:"selected_key"`

	// ExecutedKey is the trial key whose result (or terminal error) was
	// returned to the caller. Differs from SelectedKey when a kill switch,
	// an unregistered key, or an error-policy replay redirected the call.
	ExecutedKey string `json:"executed_key"`

	// Fallback reports whether execution was redirected away from the
	// selected trial.
	Fallback bool `json:"fallback"`

	// Timestamp is when the dispatch completed.
	Timestamp time.Time `json:"timestamp"`

	// Err is the terminal error returned to the caller, if any.
	Err error `json:"-"`
}

// NewAssignment stamps an assignment with an ID and timestamp.
func NewAssignment(experiment, service, method string) Assignment {
	return Assignment{
		ID:         uuid.New().String(),
		Experiment: experiment,
		Service:    service,
		Method:     method,
		Timestamp:  time.Now(),
	}
}

// Sink receives assignments. Implementations must tolerate concurrent calls
// and should return quickly; the dispatcher isolates panics but calls sinks
// on the dispatch goroutine.
type Sink interface {
	Record(ctx context.Context, a Assignment)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, a Assignment)

func (f SinkFunc) Record(ctx context.Context, a Assignment) { f(ctx, a) }
