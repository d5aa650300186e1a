// Package valueobject formats amounts for Brazilian readers.
package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currency is an ISO 4217 code
type Currency string

const (
	BRL Currency = "BRL"
	USD Currency = "USD"
	EUR Currency = "EUR"
)

// DefaultCurrency is the currency of every stored amount
const DefaultCurrency = BRL

var symbols = map[Currency]string{
	BRL: "R$",
	USD: "US$",
	EUR: "€",
}

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// FormatCurrency formats an amount with the currency symbol and pt-BR separators
func FormatCurrency(amount decimal.Decimal, currency Currency) string {
	symbol, ok := symbols[currency]
	if !ok {
		symbol = string(currency)
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	return fmt.Sprintf("%s%s %s", sign, symbol, FormatNumber(amount, 2))
}

// FormatBRL formats an amount in reais
func FormatBRL(amount decimal.Decimal) string {
	return FormatCurrency(amount, BRL)
}

// FormatNumber formats a number with pt-BR grouping and a fixed number of decimals
func FormatNumber(value decimal.Decimal, places int) string {
	f := value.Round(int32(places)).InexactFloat64()
	return ptBR.Sprint(number.Decimal(f, number.Scale(places)))
}
