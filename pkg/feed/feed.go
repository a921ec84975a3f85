package feed

import (
	"context"
	"slices"
	"sync"

	"github.com/chaskitbooks/chaskit/pkg/browse"
	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const DefaultPageSize = 20

// Source serves pages of books. Both *client.Client and *browse.Memory
// implement it.
type Source interface {
	Fetch(ctx context.Context, q browse.Query, offset, limit int) (browse.Page, error)
}

type Options struct {
	PageSize int
	// Strict clears the loaded books when a page fails to load instead of
	// keeping what was already there.
	Strict bool
}

// Feed is the browsing state of a client: the active query and the pages of
// books loaded for it so far. It's safe for concurrent use.
type Feed struct {
	source   Source
	pageSize int
	strict   bool

	mu         sync.Mutex
	query      browse.Query
	books      []*models.Book
	total      int
	loaded     bool
	inFlight   bool
	generation uint64
}

func New(source Source, opts Options) *Feed {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Feed{
		source:   source,
		pageSize: pageSize,
		strict:   opts.Strict,
		query:    browse.DefaultQuery(),
	}
}

func (f *Feed) Query() browse.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query
}

// Books returns a copy of the loaded books in display order.
func (f *Feed) Books() []*models.Book {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.books)
}

func (f *Feed) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// HasMore reports whether another page can be loaded. Before the first page
// arrives it's always true.
func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore()
}

func (f *Feed) hasMore() bool {
	return !f.loaded || browse.HasMore(len(f.books), f.total)
}

func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Reset switches to q, drops every loaded page and loads the first page of
// the new results. Responses to requests made for an earlier query are
// ignored when they arrive.
func (f *Feed) Reset(ctx context.Context, q browse.Query) error {
	if err := q.Validate(); err != nil {
		return errors.WithStack(err)
	}

	f.mu.Lock()
	f.generation++
	f.query = q.Normalize()
	f.books = nil
	f.total = 0
	f.loaded = false
	f.inFlight = true
	gen, query := f.generation, f.query
	f.mu.Unlock()

	_, err := f.fetch(ctx, gen, query, 0)
	return err
}

// LoadMore appends the next page. It returns false without making a request
// when a page is already loading or every book has been loaded.
func (f *Feed) LoadMore(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.inFlight || !f.hasMore() {
		f.mu.Unlock()
		return false, nil
	}
	f.inFlight = true
	gen, query, offset := f.generation, f.query, len(f.books)
	f.mu.Unlock()

	return f.fetch(ctx, gen, query, offset)
}

// fetch loads one page and applies it if the feed hasn't been reset since the
// request was made. It reports whether the page was applied.
func (f *Feed) fetch(ctx context.Context, gen uint64, query browse.Query, offset int) (bool, error) {
	page, err := f.source.Fetch(ctx, query, offset, f.pageSize)

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.generation {
		logger.FromContext(ctx).Debug("discarding stale page", logger.Data{"offset": offset})
		return false, nil
	}
	f.inFlight = false

	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to load page", logger.Data{"offset": offset})
		if f.strict {
			f.books = nil
			f.total = 0
		}
		return false, errors.WithStack(err)
	}

	f.books = append(f.books, page.Books...)
	f.total = page.Total
	f.loaded = true
	return true, nil
}

type snapshot struct {
	generation uint64
	books      []*models.Book
	total      int
}

func (f *Feed) snapshot() snapshot {
	return snapshot{f.generation, slices.Clone(f.books), f.total}
}

// restore puts back s unless the feed was reset in the meantime, in which case
// the list no longer holds the optimistic change.
func (f *Feed) restore(s snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.generation != f.generation {
		return
	}
	f.books = s.books
	f.total = s.total
}

func (f *Feed) swap(old, updated *models.Book) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := slices.Index(f.books, old); i >= 0 {
		f.books[i] = updated
	}
}

// Replace shows book in place of the loaded book with the same ID, then runs
// commit. If commit fails the previous list is restored; if it succeeds the
// book it returns replaces the optimistic copy.
func (f *Feed) Replace(ctx context.Context, book *models.Book, commit func(ctx context.Context) (*models.Book, error)) error {
	f.mu.Lock()
	snap := f.snapshot()
	i := slices.IndexFunc(f.books, func(b *models.Book) bool { return b.ID == book.ID })
	if i >= 0 {
		f.books = slices.Clone(f.books)
		f.books[i] = book
	}
	f.mu.Unlock()

	saved, err := commit(ctx)
	if err != nil {
		f.restore(snap)
		return err
	}
	if saved != nil {
		f.swap(book, saved)
	}
	return nil
}

// Remove hides the book with id, then runs commit, restoring it on failure.
func (f *Feed) Remove(ctx context.Context, id string, commit func(ctx context.Context) error) error {
	f.mu.Lock()
	snap := f.snapshot()
	books := slices.DeleteFunc(slices.Clone(f.books), func(b *models.Book) bool { return b.ID == id })
	if removed := len(f.books) - len(books); removed > 0 {
		f.books = books
		f.total -= removed
	}
	f.mu.Unlock()

	if err := commit(ctx); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

// Prepend shows book at the top of the list, then runs commit. The created
// book returned by commit takes the place of the placeholder.
func (f *Feed) Prepend(ctx context.Context, book *models.Book, commit func(ctx context.Context) (*models.Book, error)) error {
	f.mu.Lock()
	snap := f.snapshot()
	f.books = append([]*models.Book{book}, f.books...)
	f.total++
	f.mu.Unlock()

	saved, err := commit(ctx)
	if err != nil {
		f.restore(snap)
		return err
	}
	if saved != nil {
		f.swap(book, saved)
	}
	return nil
}
