package browse

import (
	"strings"

	"github.com/chaskitbooks/chaskit/pkg/models"
	"golang.org/x/text/cases"
)

type matcher struct {
	q      Query
	folder cases.Caser
	needle string
}

func newMatcher(q Query) *matcher {
	m := &matcher{q: q, folder: cases.Fold()}
	m.needle = m.folder.String(strings.TrimSpace(q.Search))
	return m
}

func (m *matcher) match(b *models.Book) bool {
	if m.needle != "" && !m.matchSearch(b) {
		return false
	}
	if m.q.Genre != "" && !b.HasGenre(m.q.Genre) {
		return false
	}
	if m.q.Year != 0 && b.CompletionYear != m.q.Year {
		return false
	}
	if m.q.WhichWitch != "" && b.WhichWitch != m.q.WhichWitch {
		return false
	}
	return true
}

func (m *matcher) matchSearch(b *models.Book) bool {
	if strings.Contains(m.folder.String(b.Title), m.needle) ||
		strings.Contains(m.folder.String(b.Author), m.needle) {
		return true
	}
	return b.SeriesName != nil && strings.Contains(m.folder.String(*b.SeriesName), m.needle)
}

// Matches reports whether b passes every active filter in q.
func Matches(b *models.Book, q Query) bool {
	return newMatcher(q).match(b)
}

// Filter returns the books that pass every active filter, preserving order.
// The input slice isn't modified.
func Filter(books []*models.Book, q Query) []*models.Book {
	m := newMatcher(q)
	out := make([]*models.Book, 0, len(books))
	for _, b := range books {
		if m.match(b) {
			out = append(out, b)
		}
	}
	return out
}
