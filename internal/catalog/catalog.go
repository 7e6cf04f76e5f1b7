// Package catalog reads Product records, either from the remote catalog API
// or from a local SQLite database.
package catalog

import (
	"context"
	"errors"

	"github.com/fjod/bakery-storefront/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUpstream        = errors.New("catalog upstream error")
)

type Filter struct {
	CategoryID string
	Featured   bool
	BestSeller bool
	NewArrival bool
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, f Filter) ([]domain.Product, error)
}
