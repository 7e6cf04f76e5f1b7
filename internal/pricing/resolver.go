package pricing

import (
	"github.com/fjod/bakery-storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// ResolveUnitPrice returns the price of the product's unit option matching
// unitType, or the base price when unitType is empty or no longer offered.
func ResolveUnitPrice(p *domain.Product, unitType string) decimal.Decimal {
	if opt, ok := findUnit(p, unitType); ok {
		return opt.Price
	}
	return p.Price
}

// HasUnitType reports whether the product still offers unitType.
func HasUnitType(p *domain.Product, unitType string) bool {
	_, ok := findUnit(p, unitType)
	return ok
}

func findUnit(p *domain.Product, unitType string) (domain.UnitOption, bool) {
	if unitType == "" {
		return domain.UnitOption{}, false
	}
	for _, opt := range p.UnitOptions {
		if opt.UnitType == unitType {
			return opt, true
		}
	}
	return domain.UnitOption{}, false
}
