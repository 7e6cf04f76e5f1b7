package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OwnerKind string

const (
	OwnerGuest OwnerKind = "guest"
	OwnerUser  OwnerKind = "user"
)

// OwnerScope partitions carts between guests and authenticated users.
type OwnerScope struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

func GuestScope(guestID string) OwnerScope {
	return OwnerScope{Kind: OwnerGuest, ID: guestID}
}

func UserScope(userID string) OwnerScope {
	return OwnerScope{Kind: OwnerUser, ID: userID}
}

func (o OwnerScope) IsGuest() bool {
	return o.Kind != OwnerUser
}

// StorageKey is the key a cart is persisted under.
func (o OwnerScope) StorageKey() string {
	if o.Kind == OwnerUser {
		return "cart_user_" + o.ID
	}
	if o.ID == "" {
		return "cart_guest"
	}
	return "cart_guest_" + o.ID
}

// LineItemID composes the deterministic line id for a product/unit pair.
func LineItemID(productID, unitType string) string {
	return productID + "-" + unitType
}

type CartLineItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
	NameZh    string          `json:"nameZh,omitempty"`
	Image     string          `json:"image,omitempty"`
	UnitType  string          `json:"unitType,omitempty"`
	AddedAt   time.Time       `json:"addedAt"`
}

func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Cart struct {
	OwnerKey  string         `json:"ownerKey"`
	Items     []CartLineItem `json:"items"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
