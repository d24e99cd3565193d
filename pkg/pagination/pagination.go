package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds page pagination inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Normalize returns a copy with page and limit clamped to valid values.
func (p Params) Normalize() Params {
	return Params{Page: NormalizePage(p.Page), Limit: NormalizeLimit(p.Limit)}
}

// Offset returns the row offset for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Page is the response shape for paginated lists.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPage builds a Page from the normalized params and total row count.
func NewPage[T any](items []T, params Params, total int64) Page[T] {
	n := params.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       n.Page,
		Limit:      n.Limit,
		Total:      total,
		TotalPages: TotalPages(total, n.Limit),
	}
}

// NormalizePage treats anything below one as the first page.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// TotalPages rounds total/limit up.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
