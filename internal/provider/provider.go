package provider

import (
	"context"

	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
)

// Provider is the outbound port workflow events are delivered through.
type Provider interface {
	// Name labels the sink in metrics and attempt records.
	Name() string
	Send(ctx context.Context, event domain.OutboxEvent) (*ProviderResponse, error)
}

// ProviderResponse stores sink call metadata for audit and persistence.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
