package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/domain"
)

// Publisher is the write side shared by the in-process bus and Kafka.
type Publisher interface {
	PublishCartChanged(ctx context.Context, evt domain.CartChanged) error
	PublishOrderPlaced(ctx context.Context, evt domain.OrderPlaced) error
}

type OrderPlacedHandler func(ctx context.Context, evt domain.OrderPlaced) error

// Bus delivers events to subscribers inside this process. CartChanged is
// fanned out per owner key without blocking the publisher; a subscriber whose
// buffer is full misses the event and re-reads the cart on the next one.
type Bus struct {
	logger *zap.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan domain.CartChanged
	orders []OrderPlacedHandler
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[string]map[int]chan domain.CartChanged),
	}
}

// Subscribe returns a channel of CartChanged events for ownerKey and a func
// that unsubscribes and closes the channel.
func (b *Bus) Subscribe(ownerKey string, buffer int) (<-chan domain.CartChanged, func()) {
	ch := make(chan domain.CartChanged, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[ownerKey] == nil {
		b.subs[ownerKey] = make(map[int]chan domain.CartChanged)
	}
	b.subs[ownerKey][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[ownerKey], id)
			if len(b.subs[ownerKey]) == 0 {
				delete(b.subs, ownerKey)
			}
			close(ch)
		})
	}
}

func (b *Bus) PublishCartChanged(_ context.Context, evt domain.CartChanged) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[evt.OwnerKey] {
		select {
		case ch <- evt:
		default:
			b.logger.Debug("dropping cart changed event for slow subscriber", zap.String("owner_key", evt.OwnerKey))
		}
	}
	return nil
}

// OnOrderPlaced registers h to run synchronously for every OrderPlaced.
func (b *Bus) OnOrderPlaced(h OrderPlacedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append(b.orders, h)
}

func (b *Bus) PublishOrderPlaced(ctx context.Context, evt domain.OrderPlaced) error {
	b.mu.RLock()
	handlers := append([]OrderPlacedHandler(nil), b.orders...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribers reports how many subscriptions are open for ownerKey.
func (b *Bus) Subscribers(ownerKey string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[ownerKey])
}
