package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidEAN(t *testing.T) {
	tests := []struct {
		name  string
		ean   string
		valid bool
	}{
		{"UPC-A 12 digits", "501234567890", true},
		{"EAN-13", "5012345678900", true},
		{"GTIN-14", "05012345678900", true},
		{"too short", "50123456789", false},
		{"too long", "050123456789001", false},
		{"empty", "", false},
		{"letters", "50123456789AB", false},
		{"digits with space", "5012345 78900", false},
		{"ASIN is not an EAN", "B000000000", false},
		{"negative-looking", "-012345678900", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidEAN(tt.ean))
		})
	}
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		expected *FileKey
	}{
		{"full key", "amazon_B07XYZ1234_5012345678900.json", &FileKey{ASIN: "B07XYZ1234", EAN: "5012345678900"}},
		{"asin only", "amazon_B07XYZ1234.json", &FileKey{ASIN: "B07XYZ1234"}},
		{"underscore but invalid ean", "amazon_B07XYZ1234_notanean.json", &FileKey{ASIN: "B07XYZ1234_notanean"}},
		{"not a cache file", "supplier_cache.json", nil},
		{"wrong extension", "amazon_B07XYZ1234.csv", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseFileName(tt.file))
		})
	}
}
