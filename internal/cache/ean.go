package cache

// ValidEAN reports whether s is usable as the EAN part of a cache key:
// digits only, 12 to 14 characters (UPC-A, EAN-13, GTIN-14).
func ValidEAN(s string) bool {
	if len(s) < 12 || len(s) > 14 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
