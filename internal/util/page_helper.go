package util

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// NormalizePage clamps offset/limit coming from callers.
func NormalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return offset, limit
}
