package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "tle_arena"

// Tracer returns the engine tracer from the global provider. Without an
// exporter configured the global provider records nothing.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
