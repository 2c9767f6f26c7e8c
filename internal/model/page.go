package model

import "math"

// Page is the paginated response shape shared by every list endpoint.
//
// Pages are zero-based. Content is never nil so it always encodes as [],
// and an out-of-range page is simply empty.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	CurrentPage   int   `json:"currentPage"`
	Size          int   `json:"size"`
}

// NewPage builds a Page from one slice of content and the total row count.
func NewPage[T any](content []T, total int64, page, size int) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		CurrentPage:   page,
		Size:          size,
	}
}

// Offset is the index of the first item on a page. It saturates at
// math.MaxInt instead of wrapping, so a huge page number stays out of range.
func Offset(page, size int) int {
	if page <= 0 || size <= 0 {
		return 0
	}
	if page > math.MaxInt/size {
		return math.MaxInt
	}
	return page * size
}

// Paginate slices an in-memory list the way the repositories slice SQL
// results: items [page*size, page*size+size).
func Paginate[T any](items []T, page, size int) Page[T] {
	total := int64(len(items))
	start := Offset(page, size)
	if page < 0 || start >= len(items) {
		return NewPage[T](nil, total, page, size)
	}
	end := min(start+size, len(items))
	return NewPage(items[start:end], total, page, size)
}
