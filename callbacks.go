package shadowwrite

import (
	"context"

	"github.com/rs/zerolog"
)

// FailureHandler receives one FailureRecord per observed shadow failure.
// The harness treats it as exception-safe: a returned error or a panic is
// swallowed and logged, never surfaced to the write's caller.
type FailureHandler interface {
	HandleShadowFailure(ctx context.Context, record FailureRecord) error
}

// FailureHandlerFunc adapts a function to FailureHandler.
type FailureHandlerFunc func(ctx context.Context, record FailureRecord) error

func (f FailureHandlerFunc) HandleShadowFailure(ctx context.Context, record FailureRecord) error {
	return f(ctx, record)
}

// MetricHandler receives two MetricEvents per harness write. Unlike the
// failure handler it is not guarded: a panicking handler aborts the call,
// so implementations must not panic.
type MetricHandler interface {
	HandleMetric(event MetricEvent)
}

// MetricHandlerFunc adapts a function to MetricHandler.
type MetricHandlerFunc func(event MetricEvent)

func (f MetricHandlerFunc) HandleMetric(event MetricEvent) {
	f(event)
}

// NewLoggingFailureHandler returns a FailureHandler that writes one warning
// line per shadow failure. It never returns an error.
func NewLoggingFailureHandler(logger zerolog.Logger) FailureHandler {
	return FailureHandlerFunc(func(ctx context.Context, record FailureRecord) error {
		evt := logger.Warn().
			Str("entity_type", record.EntityType).
			Str("entity_id", record.EntityID).
			Str("operation", string(record.Operation)).
			Bool("injected", record.Injected()).
			Time("occurred_at", record.OccurredAt)
		if record.FaultID != "" {
			evt = evt.Str("fault_id", record.FaultID)
		}
		if record.RequestID != "" {
			evt = evt.Str("request_id", record.RequestID)
		}
		evt.Err(record.Err).Msg("shadow write failed")
		return nil
	})
}
