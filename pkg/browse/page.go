package browse

import (
	"context"
	"sync"

	"github.com/chaskitbooks/chaskit/pkg/models"
)

// Page is one window of a filtered, sorted result set. Total counts every
// matching book, not just the ones in the page.
type Page struct {
	Books []*models.Book `json:"books"`
	Total int            `json:"total"`
}

// HasMore reports whether books remain after the first consumed ones.
func HasMore(consumed, total int) bool {
	return consumed < total
}

// Paginate returns the window of items starting at offset. The second return
// value reports whether more items follow the window.
func Paginate[T any](items []T, offset, limit int) ([]T, bool) {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}, false
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end], HasMore(end, len(items))
}

// Memory serves pages from an in-memory collection. It's safe for concurrent
// use.
type Memory struct {
	mu    sync.RWMutex
	books []*models.Book
}

func NewMemory(books []*models.Book) *Memory {
	m := &Memory{}
	m.Replace(books)
	return m
}

// Replace swaps the whole collection.
func (m *Memory) Replace(books []*models.Book) {
	cloned := make([]*models.Book, 0, len(books))
	for _, b := range books {
		cloned = append(cloned, b.Clone())
	}
	m.mu.Lock()
	m.books = cloned
	m.mu.Unlock()
}

// Fetch filters and sorts the collection and returns the requested window.
func (m *Memory) Fetch(ctx context.Context, q Query, offset, limit int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if err := q.Validate(); err != nil {
		return Page{}, err
	}

	m.mu.RLock()
	all := Apply(m.books, q)
	m.mu.RUnlock()

	window, _ := Paginate(all, offset, limit)
	books := make([]*models.Book, 0, len(window))
	for _, b := range window {
		books = append(books, b.Clone())
	}
	return Page{Books: books, Total: len(all)}, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.books)
}
