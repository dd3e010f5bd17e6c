package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"knowde-backend/domain/events"
)

const eventSource = "knowde-backend"

// Publisher implements ports.EventPublisher on an EventBridge bus
type Publisher struct {
	client  *eventbridge.Client
	busName string
	logger  *zap.Logger
}

// NewPublisher creates an EventBridge-backed event publisher
func NewPublisher(client *eventbridge.Client, busName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:  client,
		busName: busName,
		logger:  logger,
	}
}

// Publish sends a single domain event
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends multiple domain events in one call. EventBridge caps a
// PutEvents request at 10 entries, so larger batches are chunked.
func (p *Publisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	const maxEntries = 10

	for start := 0; start < len(batch); start += maxEntries {
		end := start + maxEntries
		if end > len(batch) {
			end = len(batch)
		}

		entries := make([]types.PutEventsRequestEntry, 0, end-start)
		for _, event := range batch[start:end] {
			detail, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("marshaling event %s: %w", event.GetEventType(), err)
			}
			entries = append(entries, types.PutEventsRequestEntry{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(eventSource),
				DetailType:   aws.String(event.GetEventType()),
				Detail:       aws.String(string(detail)),
			})
		}

		result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
		if err != nil {
			return fmt.Errorf("publishing events: %w", err)
		}
		if result.FailedEntryCount > 0 {
			p.logger.Warn("some events failed to publish",
				zap.Int32("failed", result.FailedEntryCount),
				zap.Int("total", len(entries)))
			return fmt.Errorf("%d of %d events failed to publish", result.FailedEntryCount, len(entries))
		}
	}

	return nil
}
