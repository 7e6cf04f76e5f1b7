package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "card"
	PaymentEWallet      PaymentMethod = "ewallet"
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCard, PaymentEWallet, PaymentCOD, PaymentBankTransfer:
		return true
	default:
		return false
	}
}

// OrderTotals is derived from the cart on demand and never persisted on its own.
type OrderTotals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	PromoCode string          `json:"promoCode,omitempty"`
}

type AlternateAddress struct {
	FullName     string `json:"fullName" validate:"notblank"`
	Phone        string `json:"phone" validate:"notblank"`
	Address      string `json:"address" validate:"notblank"`
	ProvinceCode string `json:"provinceCode" validate:"notblank"`
	DistrictCode string `json:"districtCode,omitempty"`
	WardCode     string `json:"wardCode,omitempty"`
}

type CheckoutShippingInfo struct {
	FullName         string            `json:"fullName" validate:"notblank"`
	Email            string            `json:"email" validate:"notblank"`
	Phone            string            `json:"phone" validate:"notblank"`
	Address          string            `json:"address" validate:"notblank"`
	ProvinceCode     string            `json:"provinceCode" validate:"notblank"`
	DistrictCode     string            `json:"districtCode,omitempty"`
	WardCode         string            `json:"wardCode,omitempty"`
	UseOtherAddress  bool              `json:"useOtherAddress"`
	OtherAddress     *AlternateAddress `json:"otherAddress,omitempty" validate:"-"`
	DeliveryDate     string            `json:"deliveryDate,omitempty"`
	DeliveryTimeSlot string            `json:"deliveryTimeSlot,omitempty"`
	Note             string            `json:"note,omitempty"`
}

type Customer struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// ShippingAddress is a delivery address with codes resolved to display names.
type ShippingAddress struct {
	Recipient    string `json:"recipient"`
	Phone        string `json:"phone"`
	Street       string `json:"street"`
	ProvinceCode string `json:"provinceCode"`
	Province     string `json:"province"`
	DistrictCode string `json:"districtCode,omitempty"`
	District     string `json:"district,omitempty"`
	WardCode     string `json:"wardCode,omitempty"`
	Ward         string `json:"ward,omitempty"`
}

type OrderLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitType  string          `json:"unitType,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// OrderRequest is the payload handed to the order submission API.
type OrderRequest struct {
	SessionID        string          `json:"sessionId"`
	OwnerKey         string          `json:"ownerKey"`
	UserID           string          `json:"userId,omitempty"`
	Customer         Customer        `json:"customer"`
	ShippingAddress  ShippingAddress `json:"shippingAddress"`
	DeliveryDate     string          `json:"deliveryDate,omitempty"`
	DeliveryTimeSlot string          `json:"deliveryTimeSlot,omitempty"`
	Note             string          `json:"note,omitempty"`
	Items            []OrderLine     `json:"items"`
	Totals           OrderTotals     `json:"totals"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	Language         string          `json:"language"`
	SubmittedAt      time.Time       `json:"submittedAt"`
}

// OrderAck is the order submission API's acknowledgement of a created order.
type OrderAck struct {
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}
