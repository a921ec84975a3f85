package browse

import (
	"github.com/pkg/errors"
)

type SortField string

const (
	SortTitle  SortField = "title"
	SortAuthor SortField = "author"
	SortDate   SortField = "date"
	SortRating SortField = "rating"
	SortGenre  SortField = "genre"
)

var SortFields = []SortField{SortTitle, SortAuthor, SortDate, SortRating, SortGenre}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Query describes which books to show and in what order. The zero value of
// each filter means "don't filter".
type Query struct {
	Search     string    `json:"search,omitempty"`
	Genre      string    `json:"genre,omitempty"`
	Year       int       `json:"year,omitempty"`
	WhichWitch string    `json:"which_witch,omitempty"`
	Sort       SortField `json:"sort"`
	Direction  Direction `json:"direction"`
}

// DefaultQuery lists everything, most recently completed first.
func DefaultQuery() Query {
	return Query{Sort: SortDate, Direction: Desc}
}

// Toggle returns the query sorted by field. Selecting the active field flips
// the direction; a new field starts ascending.
func (q Query) Toggle(field SortField) Query {
	q = q.Normalize()
	if q.Sort == field {
		q.Direction = q.Direction.Flip()
		return q
	}
	q.Sort = field
	q.Direction = Asc
	return q
}

// Normalize fills in the default sort and direction.
func (q Query) Normalize() Query {
	if q.Sort == "" {
		q.Sort = SortDate
	}
	if q.Direction == "" {
		if q.Sort == SortDate {
			q.Direction = Desc
		} else {
			q.Direction = Asc
		}
	}
	return q
}

// Validate rejects unknown sort fields and directions.
func (q Query) Validate() error {
	q = q.Normalize()
	if !q.Sort.Valid() {
		return errors.Errorf("unknown sort field %q", q.Sort)
	}
	if q.Direction != Asc && q.Direction != Desc {
		return errors.Errorf("unknown sort direction %q", q.Direction)
	}
	if q.Year < 0 {
		return errors.New("year can't be negative")
	}
	return nil
}

func (d Direction) Flip() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

func (f SortField) Valid() bool {
	for _, s := range SortFields {
		if s == f {
			return true
		}
	}
	return false
}

// Filtered reports whether any filter is active.
func (q Query) Filtered() bool {
	return q.Search != "" || q.Genre != "" || q.Year != 0 || q.WhichWitch != ""
}
