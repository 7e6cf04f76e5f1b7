package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartChanged tells observers to re-read the cart stored under OwnerKey.
type CartChanged struct {
	OwnerKey  string          `json:"ownerKey"`
	ItemCount int             `json:"itemCount"`
	Total     decimal.Decimal `json:"total"`
	Source    string          `json:"source"`
	At        time.Time       `json:"at"`
}

type OrderPlaced struct {
	OrderID  string          `json:"orderId"`
	OwnerKey string          `json:"ownerKey"`
	Total    decimal.Decimal `json:"total"`
	At       time.Time       `json:"at"`
}
