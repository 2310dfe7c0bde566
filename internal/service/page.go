package service

import (
	"strings"
	"time"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

const dateLayout = "2006-01-02"

// ListQuery carries the list parameters shared by every collection
// endpoint.  Zero values mean "use the default".
type ListQuery struct {
	Search string
	SortBy string
	Desc   bool
	Page   int
	Limit  int
}

// Page is the envelope returned by list endpoints.
type Page[T any] struct {
	Data     []T `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	LastPage int `json:"lastPage"`
}

// NormalizePage replaces non-positive page/limit values with the
// defaults and caps limit at MaxLimit.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// LastPage is ceil(total/limit), never below 1.
func LastPage(total, limit int) int {
	if limit < 1 || total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

// offset returns the row offset of page.
func offset(page, limit int) int {
	return (page - 1) * limit
}

// paginate slices an in-memory result set.  page and limit must already
// be normalized.
func paginate[T any](items []T, page, limit int) Page[T] {
	total := len(items)
	start := offset(page, limit)
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	data := make([]T, 0, end-start)
	data = append(data, items[start:end]...)
	return Page[T]{Data: data, Total: total, Page: page, LastPage: LastPage(total, limit)}
}

func newPage[T any](items []T, total, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Data: items, Total: total, Page: page, LastPage: LastPage(total, limit)}
}

// parseDate accepts a calendar date ("2006-01-02") or an RFC 3339
// timestamp and returns the calendar date at UTC midnight.  For a
// timestamp the date is taken in the timestamp's own offset.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, invalid(field, "is required")
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, invalid(field, "must be a date (YYYY-MM-DD)")
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
