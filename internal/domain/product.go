package domain

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

type ProductStatus string

const (
	ProductStatusInStock    ProductStatus = "in_stock"
	ProductStatusOutOfStock ProductStatus = "out_of_stock"
)

// UnitOption is one sellable packaging of a product ("Package", "Case", ...).
// Options are unique by UnitType within a product.
type UnitOption struct {
	UnitType string          `json:"unitType"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
}

type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	NameZh        string           `json:"nameZh,omitempty"`
	Description   string           `json:"description,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	UnitOptions   []UnitOption     `json:"unitOptions,omitempty"`
	MainImage     string           `json:"mainImage,omitempty"`
	Category      CategoryRef      `json:"category"`
	Featured      bool             `json:"featured"`
	BestSeller    bool             `json:"bestSeller"`
	NewArrival    bool             `json:"newArrival"`
	Status        ProductStatus    `json:"status"`
}

func (p *Product) InStock() bool {
	return p.Status != ProductStatusOutOfStock
}

// LocalizedName returns the Chinese name for Chinese locales when one is set.
func (p *Product) LocalizedName(lang language.Tag) string {
	return localized(p.Name, p.NameZh, lang)
}

func localized(vi, zh string, lang language.Tag) string {
	if zh == "" {
		return vi
	}
	if base, _ := lang.Base(); base.String() == "zh" {
		return zh
	}
	return vi
}
