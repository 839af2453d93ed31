package farmd

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"stakefarm/crypto"
)

const instrumentationName = "stakefarm/farmd"

var (
	opCounterOnce sync.Once
	opCounter     metric.Int64Counter
)

func operationCounter() metric.Int64Counter {
	opCounterOnce.Do(func() {
		counter, err := otel.GetMeterProvider().Meter(instrumentationName).Int64Counter(
			"stakefarm.farm.operations",
			metric.WithDescription("Pool operations by outcome."),
		)
		if err != nil {
			counter, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("stakefarm.farm.operations")
		}
		opCounter = counter
	})
	return opCounter
}

// traceOp runs fn inside a span named farm.<op> and counts the outcome.
func traceOp(ctx context.Context, op string, account crypto.Address, fn func() error) error {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "farm."+op, trace.WithAttributes(
		attribute.String("farm.account", account.String()),
	))
	defer span.End()

	outcome := "ok"
	err := fn()
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	operationCounter().Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
	return err
}
