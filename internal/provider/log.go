package provider

import (
	"context"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"go.uber.org/zap"
)

// LogProvider writes events to the log. It is the sink for local runs
// without a broker or webhook.
type LogProvider struct {
	logger *zap.Logger
}

func NewLogProvider(logger *zap.Logger) *LogProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Name() string { return "log" }

func (p *LogProvider) Send(_ context.Context, event domain.OutboxEvent) (*ProviderResponse, error) {
	p.logger.Info("workflow event",
		zap.String("eventId", event.ID),
		zap.String("eventType", event.EventType.String()),
		zap.String("aggregateType", event.AggregateType),
		zap.String("aggregateId", event.AggregateID),
		zap.ByteString("payload", event.Payload),
	)
	return &ProviderResponse{MessageID: event.ID}, nil
}
