package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/domain"
)

var (
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("order status transition not allowed")
)

// Service is the read side of recorded orders plus back-office status changes.
type Service struct {
	repo   OrderRepository
	logger *zap.Logger
}

func NewService(repo OrderRepository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// GetForOwner hides orders of other owners behind ErrOrderNotFound.
func (s *Service) GetForOwner(ctx context.Context, owner domain.OwnerScope, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.OwnerKey != owner.StorageKey() {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListForOwner(ctx context.Context, owner domain.OwnerScope) ([]*domain.Order, error) {
	return s.repo.ListOrdersByOwner(ctx, owner.StorageKey())
}

func (s *Service) List(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.ListOrders(ctx, status)
}

func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}

	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: order is already %s", ErrInvalidTransition, order.Status)
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}

	if err := s.repo.UpdateStatus(ctx, id, order.Status, next); err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.String("order_id", id.String()),
		zap.String("from", order.Status.String()),
		zap.String("to", next.String()))
	return s.repo.GetOrderByID(ctx, id)
}
