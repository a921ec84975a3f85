package models

import (
	"strings"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/ratings"
	"github.com/uptrace/bun"
)

const (
	WitchLouLou = "Lou Lou"
	WitchChlo   = "Chlo"
	WitchAffo   = "Affo"
)

// WhichWitchOptions is the fixed set of values a book can be tagged with.
var WhichWitchOptions = []string{WitchLouLou, WitchChlo, WitchAffo}

func IsWhichWitch(v string) bool {
	for _, w := range WhichWitchOptions {
		if v == w {
			return true
		}
	}
	return false
}

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID              string          `bun:",pk" json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
	Title           string          `bun:",nullzero" json:"title"`
	Author          string          `bun:",nullzero" json:"author"`
	CompletionMonth int             `json:"completion_month"`
	CompletionYear  int             `json:"completion_year"`
	Genres          []string        `bun:"-" json:"genres"`
	GenreLinks      []*BookGenre    `bun:"rel:has-many,join:id=book_id" json:"-"`
	CoverImage      *string         `json:"cover_image,omitempty"`
	Ratings         ratings.Ratings `bun:"embed:rating_" json:"ratings"`
	OverallRating   float64         `json:"overall_rating"`
	StarRating      float64         `bun:"-" json:"star_rating"`
	WhichWitch      string          `bun:",nullzero" json:"which_witch"`
	IsStandalone    bool            `json:"is_standalone"`
	SeriesName      *string         `json:"series_name,omitempty"`
}

// BookGenre stores one entry of a book's ordered genre list.
type BookGenre struct {
	bun.BaseModel `bun:"table:book_genres,alias:bg"`

	ID        string `bun:",pk" json:"id"`
	BookID    string `json:"book_id"`
	SortOrder int    `json:"sort_order"`
	Name      string `bun:",nullzero" json:"name"`
}

// Recalculate derives the overall and star ratings from the sub-ratings.
func (b *Book) Recalculate() {
	b.OverallRating = ratings.Overall(b.Ratings)
	b.StarRating = ratings.Stars(b.OverallRating)
}

// SyncGenres fills Genres from the loaded genre links, in list order.
func (b *Book) SyncGenres() {
	if b.GenreLinks == nil {
		if b.Genres == nil {
			b.Genres = []string{}
		}
		return
	}
	genres := make([]string, len(b.GenreLinks))
	for i, link := range b.GenreLinks {
		genres[i] = link.Name
	}
	b.Genres = genres
}

// Hydrate fills the fields that aren't stored as columns after a book is
// loaded.
func (b *Book) Hydrate() {
	b.SyncGenres()
	b.StarRating = ratings.Stars(b.OverallRating)
}

// FirstGenre returns the first genre in the list and whether there is one.
func (b *Book) FirstGenre() (string, bool) {
	if len(b.Genres) == 0 {
		return "", false
	}
	return b.Genres[0], true
}

func (b *Book) HasGenre(name string) bool {
	for _, g := range b.Genres {
		if g == name {
			return true
		}
	}
	return false
}

// HasEmbeddedCover reports whether the cover is still stored inline as a data
// URI rather than a hosted URL.
func (b *Book) HasEmbeddedCover() bool {
	return b.CoverImage != nil && strings.HasPrefix(*b.CoverImage, "data:")
}

// Clone returns a copy that doesn't share slices or pointers with b.
func (b *Book) Clone() *Book {
	if b == nil {
		return nil
	}
	c := *b
	c.Genres = append([]string(nil), b.Genres...)
	c.GenreLinks = nil
	c.CoverImage = clonePtr(b.CoverImage)
	c.SeriesName = clonePtr(b.SeriesName)
	c.Ratings = ratings.Ratings{
		Characters:    clonePtr(b.Ratings.Characters),
		WorldBuilding: clonePtr(b.Ratings.WorldBuilding),
		Plot:          clonePtr(b.Ratings.Plot),
		WritingStyle:  clonePtr(b.Ratings.WritingStyle),
		Enjoyment:     clonePtr(b.Ratings.Enjoyment),
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
