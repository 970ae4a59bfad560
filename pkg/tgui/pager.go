package tgui

import "fmt"

// Page is one page of a paginated slice. Index is 0-based.
type Page[T any] struct {
	Items   []T
	Index   int
	Pages   int
	From    int
	To      int
	Total   int
	HasPrev bool
	HasNext bool
}

// Paginate returns page idx of items. Out-of-range indexes clamp.
func Paginate[T any](items []T, idx, size int) Page[T] {
	if size <= 0 {
		size = 10
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	idx = max(0, min(idx, pages-1))
	from := min(idx*size, total)
	to := min(from+size, total)
	return Page[T]{
		Items:   items[from:to],
		Index:   idx,
		Pages:   pages,
		From:    from,
		To:      to,
		Total:   total,
		HasPrev: idx > 0,
		HasNext: to < total,
	}
}

// Label renders "Page 2/3 • 11–20 of 25".
func (p Page[T]) Label() string {
	if p.Total == 0 {
		return "Page 1/1"
	}
	return fmt.Sprintf("Page %d/%d • %d–%d of %d", p.Index+1, p.Pages, p.From+1, p.To, p.Total)
}
