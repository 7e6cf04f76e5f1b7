package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusBaking    OrderStatus = "BAKING"
	OrderStatusShipping  OrderStatus = "SHIPPING"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusBaking,
		OrderStatusShipping,
		OrderStatusDelivered,
		OrderStatusCancelled:
		return true
	default:
		return false
	}
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether the back office may move an order from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusConfirmed || next == OrderStatusCancelled
	case OrderStatusConfirmed:
		return next == OrderStatusBaking || next == OrderStatusCancelled
	case OrderStatusBaking:
		return next == OrderStatusShipping || next == OrderStatusCancelled
	case OrderStatusShipping:
		return next == OrderStatusDelivered
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	return string(s)
}

// Order is an accepted OrderRequest as stored by the order intake.
type Order struct {
	ID        uuid.UUID
	SessionID string
	OwnerKey  string
	UserID    string
	Request   OrderRequest
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
