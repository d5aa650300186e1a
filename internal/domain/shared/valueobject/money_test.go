package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatBRL(t *testing.T) {
	tests := map[string]string{
		"0":           "R$ 0,00",
		"1234.5":      "R$ 1.234,50",
		"1234567.891": "R$ 1.234.567,89",
		"-10":         "-R$ 10,00",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatBRL(decimal.RequireFromString(in)), in)
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "12.345", FormatNumber(decimal.NewFromInt(12345), 0))
	assert.Equal(t, "3,14", FormatNumber(decimal.RequireFromString("3.14159"), 2))
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "US$ 1,00", FormatCurrency(decimal.NewFromInt(1), USD))
	assert.Equal(t, "GBP 2,50", FormatCurrency(decimal.RequireFromString("2.5"), "GBP"))
}
