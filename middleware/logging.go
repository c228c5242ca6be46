package middleware

import (
	"context"
	"log/slog"

	"github.com/haasonsaas/trialrun/dispatch"
)

// ErrorLogging logs every failed attempt with full attribution: experiment,
// service, method, the attempted trial, and the originally selected trial.
// Successful attempts are logged at Debug.
func ErrorLogging(logger *slog.Logger) dispatch.Decorator {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dispatch")
	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, inv dispatch.Invocation) (any, error) {
			result, err := next(ctx, inv)
			if err != nil {
				logger.ErrorContext(ctx, "trial attempt failed",
					"experiment", inv.Experiment,
					"service", inv.Service,
					"method", inv.Method,
					"trial", inv.TrialKey,
					"selected", inv.SelectedKey,
					"error", err)
				return result, err
			}
			logger.DebugContext(ctx, "trial attempt succeeded",
				"experiment", inv.Experiment,
				"method", inv.Method,
				"trial", inv.TrialKey)
			return result, err
		}
	}
}
