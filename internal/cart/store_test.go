package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/cart/cache"
	"github.com/fjod/bakery-storefront/internal/cart/repository"
	"github.com/fjod/bakery-storefront/internal/domain"
)

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, key string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Set(_ context.Context, key string, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[key] = c
	return m.err
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, key)
	return m.err
}

func (m *mockCache) has(key string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[key]
	return ok
}

type failingRepository struct {
	repository.CartRepository
	getErr    error
	upsertErr error
}

func (f *failingRepository) GetCart(ctx context.Context, key string) (*domain.Cart, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.CartRepository.GetCart(ctx, key)
}

func (f *failingRepository) UpsertCart(ctx context.Context, c *domain.Cart) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.CartRepository.UpsertCart(ctx, c)
}

// pausingRepository blocks the first GetCart after arm until resume is closed.
type pausingRepository struct {
	repository.CartRepository
	armed  atomic.Bool
	loaded chan struct{}
	resume chan struct{}
}

func (p *pausingRepository) arm() {
	p.loaded = make(chan struct{})
	p.resume = make(chan struct{})
	p.armed.Store(true)
}

func (p *pausingRepository) GetCart(ctx context.Context, key string) (*domain.Cart, error) {
	c, err := p.CartRepository.GetCart(ctx, key)
	if p.armed.CompareAndSwap(true, false) {
		close(p.loaded)
		<-p.resume
	}
	return c, err
}

type mockPublisher struct {
	m      sync.Mutex
	events []domain.CartChanged
	err    error
}

func (m *mockPublisher) PublishCartChanged(_ context.Context, evt domain.CartChanged) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.events = append(m.events, evt)
	return m.err
}

func (m *mockPublisher) published() []domain.CartChanged {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]domain.CartChanged(nil), m.events...)
}

type mockProducts struct {
	products map[string]*domain.Product
	err      error
}

func (m *mockProducts) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, errors.New("product not found")
	}
	return p, nil
}

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func cookieBox() *domain.Product {
	return &domain.Product{
		ID:     "cookie-box",
		Name:   "Bánh quy bơ",
		NameZh: "黄油饼干",
		Price:  decimal.NewFromInt(120000),
		UnitOptions: []domain.UnitOption{
			{UnitType: "Package", Price: decimal.NewFromInt(120000), Stock: 40},
			{UnitType: "Case", Price: decimal.NewFromInt(399600), Stock: 10},
		},
		MainImage: "/img/cookie.jpg",
	}
}

func creamPuff() *domain.Product {
	return &domain.Product{ID: "cream-puff", Name: "Bánh su kem", Price: decimal.NewFromInt(243000)}
}

type fixture struct {
	store     *Store
	repo      *repository.MemoryRepository
	cache     *mockCache
	publisher *mockPublisher
	products  *mockProducts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      repository.NewMemoryRepository(),
		cache:     newMockCache(),
		publisher: &mockPublisher{},
		products: &mockProducts{products: map[string]*domain.Product{
			"cookie-box": cookieBox(),
			"cream-puff": creamPuff(),
		}},
	}
	f.store = NewStore(f.repo, f.cache, f.publisher, f.products, zap.NewNop(),
		WithClock(func() time.Time { return fixedNow }),
		WithSource("test-instance"),
	)
	return f
}

var guest = domain.GuestScope("")

func TestGetItems_EmptyWhenNoCart(t *testing.T) {
	f := newFixture(t)

	items, err := f.store.GetItems(context.Background(), guest)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestAddItem_SameProductAndUnitAccumulates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.AddItem(ctx, guest, cookieBox(), 2, "Package")
	require.NoError(t, err)
	items, err := f.store.AddItem(ctx, guest, cookieBox(), 3, "Package")
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "cookie-box-Package", items[0].ID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.True(t, decimal.NewFromInt(120000).Equal(items[0].Price))
	assert.Equal(t, fixedNow, items[0].AddedAt)
}

func TestAddItem_DifferentUnitsAreSeparateLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.AddItem(ctx, guest, cookieBox(), 1, "Package")
	require.NoError(t, err)
	items, err := f.store.AddItem(ctx, guest, cookieBox(), 1, "Case")
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "cookie-box-Case", items[1].ID)
	assert.True(t, decimal.NewFromInt(399600).Equal(items[1].Price))
}

func TestAddItem_ProductWithoutUnitsUsesBasePrice(t *testing.T) {
	f := newFixture(t)

	items, err := f.store.AddItem(context.Background(), guest, creamPuff(), 1, "")
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "cream-puff-", items[0].ID)
	assert.True(t, decimal.NewFromInt(243000).Equal(items[0].Price))
}

func TestAddItem_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.AddItem(ctx, guest, cookieBox(), 0, "Package")
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.store.AddItem(ctx, guest, cookieBox(), -2, "Package")
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.store.AddItem(ctx, guest, cookieBox(), 1, "")
	assert.ErrorIs(t, err, ErrUnitTypeRequired)

	assert.Empty(t, f.publisher.published())
	_, err = f.repo.GetCart(ctx, guest.StorageKey())
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}

func TestAddProduct_FetchesFromCatalog(t *testing.T) {
	f := newFixture(t)

	items, err := f.store.AddProduct(context.Background(), guest, "cookie-box", 2, "Case")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "黄油饼干", items[0].NameZh)
	assert.Equal(t, "/img/cookie.jpg", items[0].Image)
}

func TestAddProduct_CatalogFailureLeavesCartUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.NoError(t, err)

	f.products.err = errors.New("catalog unavailable")
	_, err = f.store.AddProduct(ctx, guest, "cookie-box", 1, "Case")
	require.ErrorContains(t, err, "catalog unavailable")

	items, err := f.store.GetItems(ctx, guest)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "cream-puff-", items[0].ID)
}

func TestUpdateQuantity_SetsAbsoluteValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.AddItem(ctx, guest, cookieBox(), 4, "Case")
	require.NoError(t, err)

	items, err := f.store.UpdateQuantity(ctx, guest, "cookie-box-Case", 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestUpdateQuantity_ZeroRemovesItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.AddItem(ctx, guest, cookieBox(), 1, "Case")
	require.NoError(t, err)
	_, err = f.store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.NoError(t, err)

	_, err = f.store.UpdateQuantity(ctx, guest, "cookie-box-Case", 0)
	require.NoError(t, err)

	items, err := f.store.GetItems(ctx, guest)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "cream-puff-", items[0].ID)
}

func TestRemoveItem_MissingIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.NoError(t, err)
	before := len(f.publisher.published())

	items, err := f.store.RemoveItem(ctx, guest, "does-not-exist")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Len(t, f.publisher.published(), before)
}

func TestClear_PersistsEmptySequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.AddItem(ctx, guest, creamPuff(), 3, "")
	require.NoError(t, err)

	require.NoError(t, f.store.Clear(ctx, guest))

	stored, err := f.repo.GetCart(ctx, guest.StorageKey())
	require.NoError(t, err)
	assert.Empty(t, stored.Items)

	items, err := f.store.GetItems(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestOwnersAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := domain.UserScope("42")

	_, err := f.store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.NoError(t, err)
	_, err = f.store.AddItem(ctx, user, cookieBox(), 2, "Case")
	require.NoError(t, err)

	guestItems, err := f.store.GetItems(ctx, guest)
	require.NoError(t, err)
	userItems, err := f.store.GetItems(ctx, user)
	require.NoError(t, err)

	require.Len(t, guestItems, 1)
	require.Len(t, userItems, 1)
	assert.Equal(t, "cream-puff-", guestItems[0].ID)
	assert.Equal(t, "cookie-box-Case", userItems[0].ID)

	_, err = f.repo.GetCart(ctx, "cart_user_42")
	assert.NoError(t, err)
}

func TestMutationsPublishCartChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.AddItem(ctx, guest, cookieBox(), 2, "Case")
	require.NoError(t, err)
	_, err = f.store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.NoError(t, err)

	events := f.publisher.published()
	require.Len(t, events, 2)
	last := events[1]
	assert.Equal(t, "cart_guest", last.OwnerKey)
	assert.Equal(t, 3, last.ItemCount)
	assert.True(t, decimal.NewFromInt(1042200).Equal(last.Total))
	assert.Equal(t, "test-instance", last.Source)
	assert.Equal(t, fixedNow, last.At)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	items, err := f.store.AddItem(context.Background(), guest, creamPuff(), 1, "")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestGetItems_ReadThroughCacheAndInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.NoError(t, err)

	_, err = f.store.GetItems(ctx, guest)
	require.NoError(t, err)
	assert.True(t, f.cache.has("cart_guest"))

	_, err = f.store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.NoError(t, err)
	assert.False(t, f.cache.has("cart_guest"))

	items, err := f.store.GetItems(ctx, guest)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestGetItems_ConcurrentWriteIsNotMaskedByCacheFill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.NoError(t, err)

	repo := &pausingRepository{CartRepository: f.repo}
	store := NewStore(repo, f.cache, f.publisher, f.products, zap.NewNop())
	repo.arm()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := store.GetItems(ctx, guest)
		assert.NoError(t, err)
	}()
	<-repo.loaded

	go func() {
		defer wg.Done()
		_, err := store.UpdateQuantity(ctx, guest, "cream-puff-", 7)
		assert.NoError(t, err)
	}()
	time.Sleep(50 * time.Millisecond)
	close(repo.resume)
	wg.Wait()

	items, err := store.GetItems(ctx, guest)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)

	stored, err := f.repo.GetCart(ctx, guest.StorageKey())
	require.NoError(t, err)
	assert.Equal(t, 7, stored.Items[0].Quantity)
}

func TestAddItem_QuantityLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.AddItem(ctx, guest, creamPuff(), MaxLineQuantity+1, "")
	assert.ErrorIs(t, err, ErrQuantityLimit)

	_, err = f.store.AddItem(ctx, guest, creamPuff(), 90, "")
	require.NoError(t, err)
	_, err = f.store.AddItem(ctx, guest, creamPuff(), 10, "")
	assert.ErrorIs(t, err, ErrQuantityLimit)
	_, err = f.store.UpdateQuantity(ctx, guest, "cream-puff-", MaxLineQuantity+1)
	assert.ErrorIs(t, err, ErrQuantityLimit)

	items, err := f.store.AddItem(ctx, guest, creamPuff(), 9, "")
	require.NoError(t, err)
	assert.Equal(t, MaxLineQuantity, items[0].Quantity)
	assert.Len(t, f.publisher.published(), 2)
}

func TestAddItem_UnofferedUnitFallsBackToBasePrice(t *testing.T) {
	f := newFixture(t)

	items, err := f.store.AddItem(context.Background(), guest, cookieBox(), 1, "Pallet")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "cookie-box-Pallet", items[0].ID)
	assert.True(t, decimal.NewFromInt(120000).Equal(items[0].Price))
}

func TestGetItems_CacheErrorFallsBackToRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.NoError(t, err)

	f.cache.err = errors.New("redis unavailable")
	items, err := f.store.GetItems(ctx, guest)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestRepositoryErrorsAreReturned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := &failingRepository{CartRepository: f.repo, getErr: errors.New("mongo down")}
	store := NewStore(repo, f.cache, f.publisher, f.products, zap.NewNop())

	_, err := store.GetItems(ctx, guest)
	require.ErrorContains(t, err, "mongo down")

	_, err = store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.ErrorContains(t, err, "mongo down")

	repo.getErr = nil
	repo.upsertErr = errors.New("write conflict")
	_, err = store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.ErrorContains(t, err, "write conflict")
	assert.Empty(t, f.publisher.published())
}

func TestRoundTrip_ReloadedStoreSeesSameSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.AddItem(ctx, guest, creamPuff(), 1, "")
	require.NoError(t, err)
	_, err = f.store.AddItem(ctx, guest, cookieBox(), 2, "Case")
	require.NoError(t, err)
	want, err := f.store.GetItems(ctx, guest)
	require.NoError(t, err)

	reloaded := NewStore(f.repo, cache.Noop{}, f.publisher, f.products, zap.NewNop())
	got, err := reloaded.GetItems(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestConcurrentAddsAreSerializedPerOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.store.AddItem(ctx, guest, cookieBox(), 1, "Package")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := f.store.GetItems(ctx, guest)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 20, items[0].Quantity)
}

func TestClearOnOrderPlaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := domain.UserScope("7")
	_, err := f.store.AddItem(ctx, user, creamPuff(), 2, "")
	require.NoError(t, err)

	hook := ClearOnOrderPlaced(f.store)
	require.NoError(t, hook(ctx, domain.OrderPlaced{OrderID: "o-1", OwnerKey: user.StorageKey()}))

	items, err := f.store.GetItems(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAggregates(t *testing.T) {
	items := []domain.CartLineItem{
		{Price: decimal.NewFromInt(399600), Quantity: 2},
		{Price: decimal.NewFromInt(243000), Quantity: 1},
	}
	assert.True(t, decimal.NewFromInt(1042200).Equal(Total(items)))
	assert.Equal(t, 3, ItemCount(items))

	assert.True(t, decimal.Zero.Equal(Total(nil)))
	assert.Equal(t, 0, ItemCount(nil))
}
