package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{"pound symbol", "£9.99", 9.99},
		{"with whitespace", "  £2.99 ", 2.99},
		{"euro decimal comma", "9,99 €", 9.99},
		{"thousands with dot decimal", "£1,299.00", 1299.00},
		{"thousands with comma decimal", "1.299,00 €", 1299.00},
		{"bare number", "12.50", 12.50},
		{"integer", "15", 15},
		{"embedded in text", "Now only £4.49 per unit", 4.49},
		{"no price", "out of stock", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ParsePrice(tt.text), 0.001)
		})
	}
}

func TestParseCurrency(t *testing.T) {
	assert.Equal(t, "GBP", ParseCurrency("£9.99"))
	assert.Equal(t, "EUR", ParseCurrency("9,99 €"))
	assert.Equal(t, "USD", ParseCurrency("$9.99"))
	assert.Equal(t, "GBP", ParseCurrency("9.99"))
}
