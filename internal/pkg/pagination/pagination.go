package pagination

import "strconv"

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// Parse reads page/limit query values, falling back to defaults on anything unusable.
func Parse(page, limit string) Page {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	return Page{Page: p, Limit: l}.Normalize()
}

func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Result is one page of items plus the total count across all pages.
type Result[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

func NewResult[T any](items []T, p Page, total int64) Result[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Page: p.Page, Limit: p.Limit, Total: total}
}
