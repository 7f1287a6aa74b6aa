package domain

// DefaultPageSize is the number of table rows per page.
const DefaultPageSize = 20

// Page is one fixed-size window of a result sequence.
type Page struct {
	Items []Feature `json:"items"`
	Index int       `json:"page"`
	Size  int       `json:"page_size"`
	Total int       `json:"total"`
	Pages int       `json:"pages"`
}

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool { return p.Index+1 < p.Pages }

// HasPrev reports whether an earlier page exists.
func (p Page) HasPrev() bool { return p.Index > 0 }

// PageCount returns ceil(total/size). A non-positive size uses DefaultPageSize.
func PageCount(total, size int) int {
	size = normalizePageSize(size)
	if total <= 0 {
		return 0
	}
	return (total-1)/size + 1
}

// ClampPage returns index limited to [0, PageCount-1], or 0 when there are no pages.
func ClampPage(index, total, size int) int {
	pages := PageCount(total, size)
	if pages == 0 || index < 0 {
		return 0
	}
	if index >= pages {
		return pages - 1
	}
	return index
}

// Paginate returns the page at pageIndex, clamped into range. The Items slice
// is a copy and never aliases features.
func Paginate(features []Feature, pageIndex, pageSize int) Page {
	size := normalizePageSize(pageSize)
	total := len(features)
	index := ClampPage(pageIndex, total, size)

	start := index * size
	end := min(start+size, total)
	items := make([]Feature, 0, end-start)
	if start < end {
		items = append(items, features[start:end]...)
	}

	return Page{
		Items: items,
		Index: index,
		Size:  size,
		Total: total,
		Pages: PageCount(total, size),
	}
}

func normalizePageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	return size
}
