// Package middleware provides the built-in decorators: attempt timing,
// structured error logging, Prometheus metrics, and OpenTelemetry tracing.
// All are optional and independently composable via dispatch.Builder.Decorate.
package middleware

import (
	"context"
	"time"

	"github.com/haasonsaas/trialrun/dispatch"
)

// Timing measures each attempt's wall-clock duration and reports it to
// onComplete along with the attempt's outcome. onComplete runs on the
// dispatch goroutine and must be fast and thread-safe.
func Timing(onComplete func(inv dispatch.Invocation, elapsed time.Duration, err error)) dispatch.Decorator {
	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, inv dispatch.Invocation) (any, error) {
			start := time.Now()
			result, err := next(ctx, inv)
			onComplete(inv, time.Since(start), err)
			return result, err
		}
	}
}
