// Package checkout turns a cart plus a validated shipping form into an
// order submission.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/address"
	"github.com/fjod/bakery-storefront/internal/cart"
	"github.com/fjod/bakery-storefront/internal/domain"
	"github.com/fjod/bakery-storefront/internal/orders"
	"github.com/fjod/bakery-storefront/internal/pricing"
)

type CartStore interface {
	GetItems(ctx context.Context, owner domain.OwnerScope) ([]domain.CartLineItem, error)
	Clear(ctx context.Context, owner domain.OwnerScope) error
}

type AddressResolver interface {
	Resolve(ctx context.Context, provinceCode, districtCode, wardCode string) (*address.Resolved, error)
}

type OrderPublisher interface {
	PublishOrderPlaced(ctx context.Context, evt domain.OrderPlaced) error
}

// OrderLookup finds the order an owner already placed for a checkout session.
type OrderLookup interface {
	FindSession(ctx context.Context, ownerKey, sessionID string) (*domain.Order, error)
}

// Form is what the shopper submits on the checkout page.
type Form struct {
	Shipping      domain.CheckoutShippingInfo `json:"shipping"`
	PaymentMethod domain.PaymentMethod        `json:"paymentMethod"`
	PromoCode     string                      `json:"promoCode,omitempty"`
	AgreeToTerms  bool                        `json:"agreeToTerms"`
	Language      string                      `json:"language,omitempty"`
	// IdempotencyKey, when set, becomes the session id so a retried submit
	// is recognised downstream.
	IdempotencyKey string `json:"-"`
}

type Summary struct {
	Items     []domain.CartLineItem `json:"items"`
	ItemCount int                   `json:"itemCount"`
	Totals    domain.OrderTotals    `json:"totals"`
}

type Result struct {
	Ack     domain.OrderAck     `json:"order"`
	Request domain.OrderRequest `json:"request"`
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithSessionIDs(next func() string) Option {
	return func(s *Service) { s.newSessionID = next }
}

// WithOrderLookup lets a retried submit with a known idempotency key return
// the order it already placed.
func WithOrderLookup(lookup OrderLookup) Option {
	return func(s *Service) { s.lookup = lookup }
}

type Service struct {
	carts      CartStore
	calculator *pricing.Calculator
	addresses  AddressResolver
	submitter  orders.Submitter
	publisher  OrderPublisher
	lookup     OrderLookup
	validate   *validator.Validate
	logger     *zap.Logger

	now          func() time.Time
	newSessionID func() string
}

// NewService builds the checkout service. A nil publisher means the order
// backend announces OrderPlaced itself.
func NewService(
	carts CartStore,
	calculator *pricing.Calculator,
	addresses AddressResolver,
	submitter orders.Submitter,
	publisher OrderPublisher,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		carts:        carts,
		calculator:   calculator,
		addresses:    addresses,
		submitter:    submitter,
		publisher:    publisher,
		validate:     newValidator(),
		logger:       logger,
		now:          time.Now,
		newSessionID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preview returns the owner's items with the totals the summary page shows.
func (s *Service) Preview(ctx context.Context, owner domain.OwnerScope, promoCode string) (*Summary, error) {
	items, err := s.carts.GetItems(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Items:     items,
		ItemCount: cart.ItemCount(items),
		Totals:    s.calculator.Calculate(items, promoCode),
	}, nil
}

// PlaceOrder validates the form, builds the OrderRequest from the owner's
// cart and submits it. The cart is only cleared through the OrderPlaced
// event once the submission was acknowledged. A form carrying the
// idempotency key of an order the owner already placed returns that order.
func (s *Service) PlaceOrder(ctx context.Context, owner domain.OwnerScope, form Form) (*Result, error) {
	if err := s.validateForm(&form); err != nil {
		return nil, err
	}
	if !form.AgreeToTerms {
		return nil, ErrTermsNotAccepted
	}

	if existing, err := s.placedSession(ctx, owner, form.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	items, err := s.carts.GetItems(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	shipping, err := s.shippingAddress(ctx, form.Shipping)
	if err != nil {
		return nil, err
	}

	req := s.buildRequest(owner, form, items, shipping)

	ack, err := s.submitter.Submit(ctx, req)
	if err != nil {
		s.logger.Error("order submission failed", zap.String("session_id", req.SessionID), zap.Error(err))
		return nil, fmt.Errorf("submit order: %w", err)
	}

	s.announce(ctx, owner, domain.OrderPlaced{
		OrderID:  ack.OrderID,
		OwnerKey: req.OwnerKey,
		Total:    req.Totals.Total,
		At:       s.now().UTC(),
	})

	s.logger.Info("order placed",
		zap.String("order_id", ack.OrderID),
		zap.String("session_id", req.SessionID),
		zap.String("owner_key", req.OwnerKey),
		zap.String("total", req.Totals.Total.String()))

	return &Result{Ack: *ack, Request: req}, nil
}

func (s *Service) placedSession(ctx context.Context, owner domain.OwnerScope, sessionID string) (*Result, error) {
	if s.lookup == nil || sessionID == "" {
		return nil, nil
	}
	order, err := s.lookup.FindSession(ctx, owner.StorageKey(), sessionID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up checkout session: %w", err)
	}

	s.logger.Info("checkout session already placed",
		zap.String("order_id", order.ID.String()),
		zap.String("session_id", sessionID))
	return &Result{
		Ack: domain.OrderAck{
			OrderID:   order.ID.String(),
			Status:    order.Status,
			CreatedAt: order.CreatedAt,
		},
		Request: order.Request,
	}, nil
}

// announce publishes OrderPlaced. When that fails the cart is cleared here.
func (s *Service) announce(ctx context.Context, owner domain.OwnerScope, evt domain.OrderPlaced) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishOrderPlaced(ctx, evt)
	if err == nil {
		return
	}
	s.logger.Warn("publish order placed failed, clearing cart directly",
		zap.String("order_id", evt.OrderID), zap.Error(err))
	if err := s.carts.Clear(ctx, owner); err != nil {
		s.logger.Error("clear cart after order failed",
			zap.String("order_id", evt.OrderID),
			zap.String("owner_key", evt.OwnerKey),
			zap.Error(err))
	}
}

func (s *Service) shippingAddress(ctx context.Context, info domain.CheckoutShippingInfo) (domain.ShippingAddress, error) {
	recipient, phone, street, provinceCode, districtCode, wardCode := deliveryAddress(info)
	addr := domain.ShippingAddress{
		Recipient:    recipient,
		Phone:        phone,
		Street:       street,
		ProvinceCode: provinceCode,
		DistrictCode: districtCode,
		WardCode:     wardCode,
	}
	if s.addresses == nil {
		return addr, nil
	}

	resolved, err := s.addresses.Resolve(ctx, provinceCode, districtCode, wardCode)
	if errors.Is(err, address.ErrNotFound) {
		prefix := ""
		if info.UseOtherAddress {
			prefix = "otherAddress."
		}
		return addr, &ValidationError{Fields: []FieldError{{Field: prefix + "provinceCode", Rule: "address"}}}
	}
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrAddressLookup, err)
	}

	addr.Province = resolved.Province.Name
	addr.District = resolved.District.Name
	addr.Ward = resolved.Ward.Name
	return addr, nil
}

func (s *Service) buildRequest(owner domain.OwnerScope, form Form, items []domain.CartLineItem, shipping domain.ShippingAddress) domain.OrderRequest {
	sessionID := form.IdempotencyKey
	if sessionID == "" {
		sessionID = s.newSessionID()
	}

	lines := make([]domain.OrderLine, len(items))
	for i, item := range items {
		lines[i] = domain.OrderLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitType:  item.UnitType,
			Price:     item.Price,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal(),
		}
	}

	req := domain.OrderRequest{
		SessionID: sessionID,
		OwnerKey:  owner.StorageKey(),
		Customer: domain.Customer{
			FullName: form.Shipping.FullName,
			Email:    form.Shipping.Email,
			Phone:    form.Shipping.Phone,
		},
		ShippingAddress:  shipping,
		DeliveryDate:     form.Shipping.DeliveryDate,
		DeliveryTimeSlot: form.Shipping.DeliveryTimeSlot,
		Note:             form.Shipping.Note,
		Items:            lines,
		Totals:           s.calculator.Calculate(items, form.PromoCode),
		PaymentMethod:    form.PaymentMethod,
		Language:         form.Language,
		SubmittedAt:      s.now().UTC(),
	}
	if !owner.IsGuest() {
		req.UserID = owner.ID
	}
	return req
}
