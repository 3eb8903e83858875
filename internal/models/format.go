package models

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var amountPrinter = message.NewPrinter(language.English)

// CurrencySymbol returns the display symbol for a currency code.
// Unknown codes are returned unchanged.
func CurrencySymbol(currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if symbol, ok := SupportedCurrencies[code]; ok {
		return symbol
	}
	return code
}

// FormatAmount renders an amount with thousands grouping and the currency symbol,
// e.g. "150,000 ₫".
func FormatAmount(amount decimal.Decimal, currency string) string {
	value := amount.Round(AmountDecimalPlaces).InexactFloat64()
	text := amountPrinter.Sprintf("%v", number.Decimal(value, number.MaxFractionDigits(AmountDecimalPlaces)))
	return text + " " + CurrencySymbol(currency)
}
