package pagination

const (
	DefaultPageSize = 20
	MaxPageSize     = 250
)

type Pagination struct {
	Page     int `form:"page,default=1"`
	PageSize int `form:"page_size,default=20"`
}

type PageInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}

// Normalize clamps the page to >= 1 and the size to [1, MaxPageSize].
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PageSize
}

// Limit is one past the page size so callers can detect a next page.
func (p Pagination) Limit() int {
	return p.Normalize().PageSize + 1
}

// Trim cuts the extra probe row and reports whether another page exists.
func Trim[T any](items []T, p Pagination) ([]T, PageInfo) {
	p = p.Normalize()
	info := PageInfo{Page: p.Page, PageSize: p.PageSize}
	if len(items) > p.PageSize {
		info.HasMore = true
		items = items[:p.PageSize]
	}
	return items, info
}
