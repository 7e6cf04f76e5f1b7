package pricing

import (
	"github.com/fjod/bakery-storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	DefaultShippingFee           = decimal.NewFromInt(30000)
	DefaultFreeShippingThreshold = decimal.NewFromInt(500000)
)

var hundred = decimal.NewFromInt(100)

type Calculator struct {
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	Promos                PromoRegistry
}

func NewCalculator(shippingFee, freeShippingThreshold decimal.Decimal, promos PromoRegistry) *Calculator {
	return &Calculator{
		ShippingFee:           shippingFee,
		FreeShippingThreshold: freeShippingThreshold,
		Promos:                promos,
	}
}

func DefaultCalculator() *Calculator {
	return NewCalculator(DefaultShippingFee, DefaultFreeShippingThreshold, DefaultPromos())
}

// Calculate derives subtotal, shipping, discount and total for items.
// The total never goes below zero.
func (c *Calculator) Calculate(items []domain.CartLineItem, promoCode string) domain.OrderTotals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	shipping := c.ShippingFee
	if subtotal.GreaterThanOrEqual(c.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	discount := decimal.Zero
	code, pct, ok := c.Promos.Lookup(promoCode)
	if ok {
		discount = subtotal.Mul(pct).Div(hundred).Round(0)
	} else {
		code = ""
	}

	total := subtotal.Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return domain.OrderTotals{
		Subtotal:  subtotal,
		Shipping:  shipping,
		Discount:  discount,
		Total:     total,
		PromoCode: code,
	}
}
