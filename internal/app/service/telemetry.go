package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/platform/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the logger, metrics and tracer every service reports to.
// Zero fields fall back to slog.Default, no-op metrics and the global tracer.
type Telemetry struct {
	Logger  *slog.Logger
	Metrics telemetry.EngineMetrics
	Tracer  trace.Tracer
}

func (t Telemetry) withDefaults() Telemetry {
	if t.Logger == nil {
		t.Logger = slog.Default()
	}
	if t.Metrics == nil {
		t.Metrics = telemetry.NoOpMetrics{}
	}
	if t.Tracer == nil {
		t.Tracer = telemetry.Tracer()
	}
	return t
}

// Notifier receives engine events after the transaction that produced them commits.
type Notifier interface {
	Notify(ctx context.Context, events ...model.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, ...model.Event) {}

// withTelemetry wraps a service operation with a span, operation metrics and a
// log line on failure. A panic is recorded as a failure and re-raised.
func withTelemetry[T any](
	tel Telemetry,
	ctx context.Context,
	service string,
	operation string,
	identifier string,
	op func(ctx context.Context) (T, error),
) (result T, err error) {
	ctx, span := tel.Tracer.Start(ctx, service+"."+operation, trace.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("identifier", identifier),
	))
	defer span.End()

	tel.Metrics.RecordOperationAttempt(ctx, operation, service)
	start := time.Now()
	defer func() {
		tel.Metrics.RecordOperationDuration(ctx, operation, service, time.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("panic in %s: %v", operation, r)
			tel.Logger.ErrorContext(ctx, "Invariant violation",
				"operation", operation,
				"identifier", identifier,
				"error", perr,
			)
			span.RecordError(perr)
			span.SetStatus(codes.Error, perr.Error())
			tel.Metrics.RecordOperationFailure(ctx, operation, service)
			panic(r)
		}
	}()

	result, err = op(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		tel.Metrics.RecordOperationFailure(ctx, operation, service)
		tel.Logger.WarnContext(ctx, "Operation failed",
			"operation", operation,
			"identifier", identifier,
			"error", err,
		)
		return result, err
	}

	tel.Metrics.RecordOperationSuccess(ctx, operation, service)
	return result, nil
}
