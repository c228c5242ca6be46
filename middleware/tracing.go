package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/trialrun/dispatch"
)

const tracerName = "github.com/haasonsaas/trialrun"

// Tracing opens one span per attempt, named "<service>.<method>", carrying
// the experiment, the attempted trial, the selected trial, and whether the
// attempt was a redirect. Failed attempts record the error and set span
// status accordingly. Uses the global tracer provider.
func Tracing() dispatch.Decorator {
	tracer := otel.Tracer(tracerName)
	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, inv dispatch.Invocation) (any, error) {
			ctx, span := tracer.Start(ctx, inv.Service+"."+inv.Method,
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("trialrun.experiment", inv.Experiment),
					attribute.String("trialrun.trial", inv.TrialKey),
					attribute.String("trialrun.selected", inv.SelectedKey),
					attribute.Bool("trialrun.redirected", inv.TrialKey != inv.SelectedKey),
				))
			defer span.End()

			result, err := next(ctx, inv)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return result, err
			}
			span.SetStatus(codes.Ok, "")
			return result, nil
		}
	}
}
