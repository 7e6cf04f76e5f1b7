package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/fjod/bakery-storefront/internal/domain"
)

// MemoryRepository keeps carts in process memory. It backs local development
// when no MongoDB is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts: make(map[string]*domain.Cart),
	}
}

func (r *MemoryRepository) GetCart(_ context.Context, ownerKey string) (*domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[ownerKey]
	if !ok {
		return nil, ErrCartNotFound
	}
	return clone(cart), nil
}

func (r *MemoryRepository) UpsertCart(_ context.Context, cart *domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.carts[cart.OwnerKey]; ok {
		cart.CreatedAt = existing.CreatedAt
	} else if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	r.carts[cart.OwnerKey] = clone(cart)
	return nil
}

func clone(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = slices.Clone(c.Items)
	return &cp
}
