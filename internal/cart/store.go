package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/bakery-storefront/internal/cart/cache"
	"github.com/fjod/bakery-storefront/internal/cart/repository"
	"github.com/fjod/bakery-storefront/internal/domain"
	"github.com/fjod/bakery-storefront/internal/pricing"
)

// MaxLineQuantity caps the quantity of a single line item.
const MaxLineQuantity = 99

var (
	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrQuantityLimit    = errors.New("line quantity exceeds the limit")
	ErrUnitTypeRequired = errors.New("unit type is required for this product")
)

// ChangePublisher receives a CartChanged event after every persisted mutation.
type ChangePublisher interface {
	PublishCartChanged(ctx context.Context, evt domain.CartChanged) error
}

// ProductSource is the read side of the product catalog.
type ProductSource interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type Option func(*Store)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSource tags published events with the id of this instance.
func WithSource(source string) Option {
	return func(s *Store) { s.source = source }
}

// Store owns the line-item sequences of every cart, keyed by owner scope.
// Each mutation loads the full sequence, changes it, writes it back and
// announces the change.
type Store struct {
	repo      repository.CartRepository
	cache     cache.CartCache
	publisher ChangePublisher
	products  ProductSource
	logger    *zap.Logger

	now    func() time.Time
	source string
	sfg    singleflight.Group // Prevents cache stampede
	locks  keyedMutex
}

func NewStore(
	repo repository.CartRepository,
	cartCache cache.CartCache,
	publisher ChangePublisher,
	products ProductSource,
	logger *zap.Logger,
	opts ...Option,
) *Store {
	s := &Store{
		repo:      repo,
		cache:     cartCache,
		publisher: publisher,
		products:  products,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetItems returns the owner's line items, or an empty sequence when the
// owner has no cart yet.
func (s *Store) GetItems(ctx context.Context, owner domain.OwnerScope) ([]domain.CartLineItem, error) {
	key := owner.StorageKey()

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, key)
		if err == nil {
			return cart.Items, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cart cache get failed", zap.String("owner_key", key), zap.Error(err))
		}

		// mutate invalidates under the same lock
		unlock := s.locks.Lock(key)
		defer unlock()

		cart, err = s.repo.GetCart(ctx, key)
		if errors.Is(err, repository.ErrCartNotFound) {
			return []domain.CartLineItem{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}

		if err := s.cache.Set(ctx, key, cart); err != nil {
			s.logger.Warn("cart cache set failed", zap.String("owner_key", key), zap.Error(err))
		}
		return cart.Items, nil
	})
	if err != nil {
		return nil, err
	}

	items := v.([]domain.CartLineItem)
	if items == nil {
		return []domain.CartLineItem{}, nil
	}
	// singleflight shares the slice between callers
	return slices.Clone(items), nil
}

// AddItem adds quantity units of product to the owner's cart. A line with the
// same product and unit type has its quantity increased; otherwise a new line
// priced by the selected unit is appended.
func (s *Store) AddItem(ctx context.Context, owner domain.OwnerScope, product *domain.Product, quantity int, unitType string) ([]domain.CartLineItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity > MaxLineQuantity {
		return nil, ErrQuantityLimit
	}
	if unitType == "" && len(product.UnitOptions) > 0 {
		return nil, ErrUnitTypeRequired
	}
	if unitType != "" && !pricing.HasUnitType(product, unitType) {
		s.logger.Warn("unit type not offered, using base price",
			zap.String("product_id", product.ID),
			zap.String("unit_type", unitType))
	}

	id := domain.LineItemID(product.ID, unitType)
	var limitErr error
	items, err := s.mutate(ctx, owner.StorageKey(), func(items []domain.CartLineItem) ([]domain.CartLineItem, bool) {
		for i := range items {
			if items[i].ID == id {
				if items[i].Quantity+quantity > MaxLineQuantity {
					limitErr = ErrQuantityLimit
					return items, false
				}
				items[i].Quantity += quantity
				return items, true
			}
		}
		return append(items, domain.CartLineItem{
			ID:        id,
			ProductID: product.ID,
			Price:     pricing.ResolveUnitPrice(product, unitType),
			Quantity:  quantity,
			Name:      product.Name,
			NameZh:    product.NameZh,
			Image:     product.MainImage,
			UnitType:  unitType,
			AddedAt:   s.now().UTC(),
		}), true
	})
	if err != nil {
		return nil, err
	}
	if limitErr != nil {
		return nil, limitErr
	}
	return items, nil
}

// AddProduct fetches productID from the catalog and adds it. A catalog
// failure leaves the cart untouched.
func (s *Store) AddProduct(ctx context.Context, owner domain.OwnerScope, productID string, quantity int, unitType string) ([]domain.CartLineItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity > MaxLineQuantity {
		return nil, ErrQuantityLimit
	}
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("fetch product %s: %w", productID, err)
	}
	return s.AddItem(ctx, owner, product, quantity, unitType)
}

// UpdateQuantity sets the quantity of itemID. Zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, owner domain.OwnerScope, itemID string, quantity int) ([]domain.CartLineItem, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, owner, itemID)
	}
	if quantity > MaxLineQuantity {
		return nil, ErrQuantityLimit
	}
	return s.mutate(ctx, owner.StorageKey(), func(items []domain.CartLineItem) ([]domain.CartLineItem, bool) {
		for i := range items {
			if items[i].ID == itemID {
				items[i].Quantity = quantity
				return items, true
			}
		}
		return items, false
	})
}

// RemoveItem drops itemID from the cart. Removing a missing line is a no-op.
func (s *Store) RemoveItem(ctx context.Context, owner domain.OwnerScope, itemID string) ([]domain.CartLineItem, error) {
	return s.mutate(ctx, owner.StorageKey(), func(items []domain.CartLineItem) ([]domain.CartLineItem, bool) {
		n := len(items)
		items = slices.DeleteFunc(items, func(it domain.CartLineItem) bool { return it.ID == itemID })
		return items, len(items) != n
	})
}

func (s *Store) Clear(ctx context.Context, owner domain.OwnerScope) error {
	return s.ClearKey(ctx, owner.StorageKey())
}

// ClearKey empties the cart stored under ownerKey. The empty sequence is
// persisted rather than the document removed.
func (s *Store) ClearKey(ctx context.Context, ownerKey string) error {
	_, err := s.mutate(ctx, ownerKey, func([]domain.CartLineItem) ([]domain.CartLineItem, bool) {
		return []domain.CartLineItem{}, true
	})
	return err
}

// mutate serializes read-modify-write cycles per owner key within this
// process. Writers in other processes race with last-write-wins.
func (s *Store) mutate(
	ctx context.Context,
	key string,
	apply func([]domain.CartLineItem) ([]domain.CartLineItem, bool),
) ([]domain.CartLineItem, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	var items []domain.CartLineItem
	cart, err := s.repo.GetCart(ctx, key)
	switch {
	case errors.Is(err, repository.ErrCartNotFound):
		items = []domain.CartLineItem{}
	case err != nil:
		return nil, fmt.Errorf("load cart: %w", err)
	default:
		items = slices.Clone(cart.Items)
	}

	items, changed := apply(items)
	if items == nil {
		items = []domain.CartLineItem{}
	}
	if !changed {
		return items, nil
	}

	if err := s.repo.UpsertCart(ctx, &domain.Cart{OwnerKey: key, Items: items}); err != nil {
		s.logger.Error("cart upsert failed", zap.String("owner_key", key), zap.Error(err))
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.invalidateCache(key)
	s.notify(ctx, key, items)
	return slices.Clone(items), nil
}

func (s *Store) invalidateCache(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("cart cache invalidate failed", zap.String("owner_key", key), zap.Error(err))
	}
}

func (s *Store) notify(ctx context.Context, key string, items []domain.CartLineItem) {
	evt := domain.CartChanged{
		OwnerKey:  key,
		ItemCount: ItemCount(items),
		Total:     Total(items),
		Source:    s.source,
		At:        s.now().UTC(),
	}
	if err := s.publisher.PublishCartChanged(ctx, evt); err != nil {
		s.logger.Warn("publish cart changed failed", zap.String("owner_key", key), zap.Error(err))
	}
}
