package catalog

import (
	"errors"
	"time"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
)

var ErrNotFound = errors.New("design not found")

const (
	DefaultPageSize = 24
	MaxPageSize     = 100
)

// Design is a catalog design as stored.
type Design struct {
	ID         string
	Title      string
	CategoryID string
	Price      int64
	MediaURL   string
	CreatedAt  time.Time
}

// Summary converts the stored design to the shape the client core consumes.
func (d Design) Summary() mockpdf.Design {
	return mockpdf.Design{ID: d.ID, Title: d.Title, CategoryID: d.CategoryID, Price: d.Price, MediaURL: d.MediaURL}
}

// Query selects one page of designs. Text matches titles case-insensitively.
type Query struct {
	Text       string
	CategoryID string
	Page       int
	PageSize   int
}

func (q Query) normalized() Query {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

func (q Query) offset() int {
	return (q.Page - 1) * q.PageSize
}

// Page is one page of designs in catalog order: newest first, ties by id.
type Page struct {
	Items   []Design
	Page    int
	HasMore bool
}
