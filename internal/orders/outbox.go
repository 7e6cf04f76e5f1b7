package orders

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/domain"
)

const outboxBatchSize = 100

type OrderPlacedPublisher interface {
	PublishOrderPlaced(ctx context.Context, evt domain.OrderPlaced) error
}

// OutboxPoller publishes OrderPlaced events recorded alongside new orders.
// An event stays in the outbox until a publish succeeds.
type OutboxPoller struct {
	repo      OutboxRepository
	publisher OrderPlacedPublisher
	logger    *zap.Logger
	tick      time.Duration
}

func NewOutboxPoller(repo OutboxRepository, publisher OrderPlacedPublisher, logger *zap.Logger) *OutboxPoller {
	return &OutboxPoller{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		tick:      time.Second,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		p.processUnpublishedEvents(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnpublishedEvents(ctx, outboxBatchSize)
	if err != nil {
		p.logger.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.logger.Warn("failed to publish outbox event",
				zap.Int64("event_id", event.ID),
				zap.String("order_id", event.OrderID.String()),
				zap.Error(err))
			continue
		}

		if err := p.repo.MarkEventPublished(ctx, event.ID); err != nil {
			p.logger.Error("failed to mark outbox event as published",
				zap.Int64("event_id", event.ID),
				zap.Error(err))
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *OutboxEvent) error {
	switch event.EventType {
	case EventOrderPlaced:
		var evt domain.OrderPlaced
		if err := json.Unmarshal(event.Payload, &evt); err != nil {
			p.logger.Error("malformed outbox payload, skipping", zap.Int64("event_id", event.ID), zap.Error(err))
			return nil
		}
		return p.publisher.PublishOrderPlaced(ctx, evt)
	default:
		p.logger.Warn("unknown outbox event type, skipping", zap.String("event_type", event.EventType))
		return nil
	}
}
