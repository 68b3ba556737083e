package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var priceRe = regexp.MustCompile(`(?:£|\$|€|GBP|EUR|USD)?\s*(\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)`)

// ParsePrice extracts the first money amount from text like "£9.99",
// "9,99 €" or "1,299.00". Returns 0 when nothing parseable is present.
func ParsePrice(text string) float64 {
	matches := priceRe.FindStringSubmatch(strings.TrimSpace(text))
	if len(matches) < 2 {
		return 0
	}
	return normalizeAmount(matches[1])
}

// ParseCurrency guesses the currency from the symbol in the text, defaulting
// to GBP since the tool targets amazon.co.uk.
func ParseCurrency(text string) string {
	switch {
	case strings.Contains(text, "€") || strings.Contains(text, "EUR"):
		return "EUR"
	case strings.Contains(text, "$") || strings.Contains(text, "USD"):
		return "USD"
	default:
		return "GBP"
	}
}

// normalizeAmount handles both decimal conventions: "1,299.00" and "1.299,00".
func normalizeAmount(s string) float64 {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma > lastDot:
		// comma is the decimal separator
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
