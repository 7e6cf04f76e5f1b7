package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fjod/bakery-storefront/internal/domain"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateSession = errors.New("order for this checkout session already exists")
	ErrStatusConflict   = errors.New("order status changed concurrently")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// EventOrderPlaced is the outbox event type written with every new order.
const EventOrderPlaced = "order_placed"

// OutboxEvent is an event recorded in the same transaction as its order and
// published afterwards.
type OutboxEvent struct {
	ID        int64
	OrderID   uuid.UUID
	EventType string
	Payload   []byte
}

type OrderRepository interface {
	// CreateOrder stores the order together with its OrderPlaced outbox event.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	ListOrdersByOwner(ctx context.Context, ownerKey string) ([]*domain.Order, error)
	// ListOrders returns every order, or only those in status when it is set.
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error)
	// UpdateStatus moves an order from one status to another and fails with
	// ErrStatusConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
}

type OutboxRepository interface {
	GetUnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventPublished(ctx context.Context, id int64) error
}
