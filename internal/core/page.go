package core

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageRequest selects one page of a listing. Page is 1-based.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize applies defaults and clamps the limit.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Bounds returns the [start, end) slice indices of the page within total items.
func (p PageRequest) Bounds(total int) (int, int) {
	start := (p.Page - 1) * p.Limit
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// Paginate slices items according to req.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	req = req.Normalize()
	start, end := req.Bounds(len(items))
	pages := (len(items) + req.Limit - 1) / req.Limit
	out := make([]T, end-start)
	copy(out, items[start:end])
	return Page[T]{Items: out, Total: len(items), Page: req.Page, Limit: req.Limit, TotalPages: pages}
}
