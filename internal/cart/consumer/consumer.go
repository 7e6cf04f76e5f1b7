package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/domain"
	"github.com/fjod/bakery-storefront/internal/events"
)

// CartClearer empties the cart stored under an owner key.
type CartClearer interface {
	ClearKey(ctx context.Context, ownerKey string) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 10 * time.Second
)

// Consumer empties a cart once the order placed from it is acknowledged. An
// offset is committed only after the cart was cleared.
type Consumer struct {
	carts      CartClearer
	reader     messageReader
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewConsumer(carts CartClearer, logger *zap.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    events.TopicOrderPlaced,
		GroupID:  "storefront-cart-cleaner",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{carts: carts, reader: reader, logger: logger, retryDelay: initialRetryDelay}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Warn("error fetching message", zap.Error(err))
		return
	}

	if evt, ok := c.decode(m); ok {
		if !c.clear(ctx, evt) {
			return
		}
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.Warn("error committing message", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

// decode reports false for messages that can never be applied. Those are
// committed and skipped.
func (c *Consumer) decode(m kafka.Message) (domain.OrderPlaced, bool) {
	var evt domain.OrderPlaced
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		c.logger.Warn("error parsing message", zap.Int64("offset", m.Offset), zap.Error(err))
		return evt, false
	}
	if evt.OwnerKey == "" {
		c.logger.Warn("order placed event without owner key", zap.String("order_id", evt.OrderID))
		return evt, false
	}
	return evt, true
}

// clear retries with backoff until the cart is cleared or ctx is done.
func (c *Consumer) clear(ctx context.Context, evt domain.OrderPlaced) bool {
	delay := c.retryDelay
	for {
		err := c.carts.ClearKey(ctx, evt.OwnerKey)
		if err == nil {
			c.logger.Info("cart cleared after order",
				zap.String("order_id", evt.OrderID),
				zap.String("owner_key", evt.OwnerKey))
			return true
		}
		c.logger.Error("failed to clear cart, retrying",
			zap.String("order_id", evt.OrderID),
			zap.String("owner_key", evt.OwnerKey),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}
