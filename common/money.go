package common

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// The separators used by the store's locale, taken from a sample the printer formats once.
var groupSeparator, decimalSeparator = localeSeparators(printer)

func localeSeparators(p *message.Printer) (string, string) {
	sample := p.Sprintf("%.2f", 1234.5)
	integer, fraction := sample[:len(sample)-3], sample[len(sample)-3:]
	return strings.TrimSuffix(strings.TrimPrefix(integer, "1"), "234"), fraction[:1]
}

// FormatCurrency formats a monetary amount in Brazilian reais.
func FormatCurrency(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	integer, fraction, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString("R$ ")
	if amount.Round(2).IsNegative() {
		b.WriteString("-")
	}
	for i, digit := range integer {
		if i > 0 && (len(integer)-i)%3 == 0 {
			b.WriteString(groupSeparator)
		}
		b.WriteRune(digit)
	}
	b.WriteString(decimalSeparator)
	b.WriteString(fraction)
	return b.String()
}

// FormatQuantity formats a stock quantity without trailing zeros.
func FormatQuantity(quantity decimal.Decimal) string {
	return quantity.String()
}
