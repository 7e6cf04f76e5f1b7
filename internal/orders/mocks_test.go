package orders

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/bakery-storefront/internal/domain"
)

type mockRepository struct {
	m         sync.RWMutex
	orders    map[uuid.UUID]*domain.Order
	outbox    []*OutboxEvent
	published map[int64]bool
	createErr error
	markErr   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		orders:    make(map[uuid.UUID]*domain.Order),
		published: make(map[int64]bool),
	}
}

func (m *mockRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, o := range m.orders {
		if o.SessionID == order.SessionID {
			return ErrDuplicateSession
		}
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	m.orders[order.ID] = &cp

	payload, _ := json.Marshal(domain.OrderPlaced{OrderID: order.ID.String(), OwnerKey: order.OwnerKey, At: order.CreatedAt})
	m.outbox = append(m.outbox, &OutboxEvent{
		ID:        int64(len(m.outbox) + 1),
		OrderID:   order.ID,
		EventType: EventOrderPlaced,
		Payload:   payload,
	})
	return nil
}

func (m *mockRepository) GetOrderBySessionID(_ context.Context, sessionID string) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, o := range m.orders {
		if o.SessionID == sessionID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *mockRepository) GetUnpublishedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*OutboxEvent
	for _, evt := range m.outbox {
		if !m.published[evt.ID] && len(out) < limit {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (m *mockRepository) MarkEventPublished(_ context.Context, id int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.published[id] = true
	return nil
}

func (m *mockRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockRepository) ListOrdersByOwner(_ context.Context, ownerKey string) ([]*domain.Order, error) {
	return m.filter(func(o *domain.Order) bool { return o.OwnerKey == ownerKey }), nil
}

func (m *mockRepository) ListOrders(_ context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	return m.filter(func(o *domain.Order) bool { return status == "" || o.Status == status }), nil
}

func (m *mockRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != from {
		return ErrStatusConflict
	}
	o.Status = to
	return nil
}

func (m *mockRepository) filter(keep func(*domain.Order) bool) []*domain.Order {
	m.m.RLock()
	defer m.m.RUnlock()
	out := []*domain.Order{}
	for _, o := range m.orders {
		if keep(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}
