package pricing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const currencySymbol = "₫"

// FormatPrice renders a whole-unit amount with locale digit grouping,
// e.g. "1.042.200 ₫" for Vietnamese and "1,042,200 ₫" for Chinese.
func FormatPrice(amount decimal.Decimal, lang language.Tag) string {
	p := message.NewPrinter(lang)
	return p.Sprintf("%d", amount.Round(0).IntPart()) + " " + currencySymbol
}
