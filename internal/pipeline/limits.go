package pipeline

// InfiniteThreshold is the sentinel the legacy config used for "no limit".
// Values at or above it mean the same as zero or unset.
const InfiniteThreshold = 99999

// InfiniteMode reports whether the configured limits mean "process
// everything": either limit unset, zero, negative, or at the sentinel.
func InfiniteMode(maxProducts, maxPerCategory int) bool {
	return !finite(maxProducts) || !finite(maxPerCategory)
}

func finite(limit int) bool {
	return limit > 0 && limit < InfiniteThreshold
}

// CategoriesNeeded returns how many categories must be scraped to reach
// maxProducts at maxPerCategory products each. Zero means "all categories"
// and is returned for any infinite configuration, so callers never divide by
// a zero limit.
func CategoriesNeeded(maxProducts, maxPerCategory int) int {
	if InfiniteMode(maxProducts, maxPerCategory) {
		return 0
	}
	return (maxProducts + maxPerCategory - 1) / maxPerCategory
}
