package invoices

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// AmountFormatter renders minor-unit amounts as localized currency strings.
type AmountFormatter struct {
	printer *message.Printer
}

// NewAmountFormatter builds a formatter for the given BCP 47 locale.
// Unknown locales fall back to English.
func NewAmountFormatter(locale string) *AmountFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &AmountFormatter{printer: message.NewPrinter(tag)}
}

// Format renders an amount in minor units of the given ISO 4217 code, e.g.
// Format(123456, "EUR") -> "€ 1,234.56" under the en locale.
func (f *AmountFormatter) Format(minor int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	major := float64(minor) / 100
	return f.printer.Sprintf("%v", currency.Symbol(unit.Amount(major)))
}
