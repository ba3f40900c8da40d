// Package notify hands engine events to the message bus once the transaction
// that produced them has committed.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/platform/broker"
	"tle_arena/internal/platform/telemetry"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	metadataEventType = "event_type"
	metadataSubject   = "subject"
)

// Publisher is best effort: a failed publish is logged and counted, never
// returned, because the state change it reports is already durable.
type Publisher struct {
	pub     message.Publisher
	logger  *slog.Logger
	metrics telemetry.EngineMetrics
}

func NewPublisher(pub message.Publisher, logger *slog.Logger, metrics telemetry.EngineMetrics) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = telemetry.NoOpMetrics{}
	}
	return &Publisher{pub: pub, logger: logger, metrics: metrics}
}

func (p *Publisher) Notify(ctx context.Context, events ...model.Event) {
	for _, e := range events {
		p.publish(ctx, e)
	}
}

func (p *Publisher) publish(ctx context.Context, e model.Event) {
	eventType := string(e.Type)
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to marshal event", "event_type", eventType, "error", err)
		p.metrics.RecordEventPublished(ctx, eventType, false)
		return
	}

	subject := broker.Subject(eventType)
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataEventType, eventType)
	msg.Metadata.Set(metadataSubject, subject)
	msg.SetContext(ctx)

	if err := p.pub.Publish(subject, msg); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", eventType,
			"subject", subject,
			"error", err,
		)
		p.metrics.RecordEventPublished(ctx, eventType, false)
		return
	}
	p.metrics.RecordEventPublished(ctx, eventType, true)
}

// Discard drops every event. It stands in for the bus when events are disabled.
type Discard struct{}

func (Discard) Notify(context.Context, ...model.Event) {}
