package pricing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// PromoRegistry maps upper-cased promo codes to a percentage of subtotal.
type PromoRegistry map[string]decimal.Decimal

func DefaultPromos() PromoRegistry {
	return PromoRegistry{
		"SAVE10": decimal.NewFromInt(10),
		"SAVE20": decimal.NewFromInt(20),
	}
}

// ParsePromos parses "CODE:PERCENT,CODE:PERCENT".
func ParsePromos(raw string) (PromoRegistry, error) {
	promos := PromoRegistry{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, pct, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("promo %q: expected CODE:PERCENT", pair)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return nil, fmt.Errorf("promo %q: invalid percent: %w", pair, err)
		}
		if n < 0 || n > 100 {
			return nil, fmt.Errorf("promo %q: percent must be between 0 and 100", pair)
		}
		promos[strings.ToUpper(strings.TrimSpace(code))] = decimal.NewFromFloat(n)
	}
	return promos, nil
}

// Lookup matches code case-insensitively.
func (r PromoRegistry) Lookup(code string) (string, decimal.Decimal, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return "", decimal.Zero, false
	}
	pct, ok := r[normalized]
	return normalized, pct, ok
}
