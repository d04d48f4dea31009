package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
)

type meterContextKey struct{}

// WithMeter returns a context carrying the provided meter.
func WithMeter(ctx context.Context, meter sentry.Meter) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return context.WithValue(ctx, meterContextKey{}, meter.WithCtx(ctx))
}

// MeterFromContext returns the request-scoped meter from context or a new one.
func MeterFromContext(ctx context.Context) sentry.Meter {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter, ok := ctx.Value(meterContextKey{}).(sentry.Meter); ok && meter != nil {
		return meter.WithCtx(ctx)
	}
	return sentry.NewMeter(ctx).WithCtx(ctx)
}

// FailureCounter returns a func that counts name with a reason attribute.
func FailureCounter(meter sentry.Meter, name string) func(reason string) {
	return func(reason string) {
		meter.Count(name, 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}
}

// StartSpan opens a manual span for a service operation and returns the
// span-bound context.
func StartSpan(ctx context.Context, operation, op, description string) (context.Context, *sentry.Span) {
	span := sentry.StartSpan(
		ctx,
		operation,
		sentry.WithOpName(op),
		sentry.WithDescription(description),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	return span.Context(), span
}
