package books

import (
	"github.com/chaskitbooks/chaskit/pkg/browse"
	"github.com/chaskitbooks/chaskit/pkg/ratings"
)

type ListBooksQuery struct {
	Limit      int    `query:"limit" json:"limit,omitempty" validate:"min=0"`
	Offset     int    `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search     string `query:"search" json:"search,omitempty" mod:"trim" validate:"max=200"`
	Genre      string `query:"genre" json:"genre,omitempty" mod:"trim" validate:"max=100"`
	Year       int    `query:"year" json:"year,omitempty" validate:"omitempty,min=1900,max=2100"`
	WhichWitch string `query:"which_witch" json:"which_witch,omitempty" validate:"which_witch"`
	Sort       string `query:"sort" json:"sort,omitempty" validate:"omitempty,oneof=title author date rating genre"`
	Direction  string `query:"direction" json:"direction,omitempty" validate:"omitempty,oneof=asc desc"`
}

func (q ListBooksQuery) browseQuery() browse.Query {
	return browse.Query{
		Search:     q.Search,
		Genre:      q.Genre,
		Year:       q.Year,
		WhichWitch: q.WhichWitch,
		Sort:       browse.SortField(q.Sort),
		Direction:  browse.Direction(q.Direction),
	}
}

type RatingsPayload struct {
	Characters    *int `json:"characters" validate:"omitempty,min=1,max=10"`
	WorldBuilding *int `json:"world_building" validate:"omitempty,min=1,max=10"`
	Plot          *int `json:"plot" validate:"omitempty,min=1,max=10"`
	WritingStyle  *int `json:"writing_style" validate:"omitempty,min=1,max=10"`
	Enjoyment     *int `json:"enjoyment" validate:"omitempty,min=1,max=10"`
}

func (p RatingsPayload) ratings() ratings.Ratings {
	return ratings.Ratings{
		Characters:    p.Characters,
		WorldBuilding: p.WorldBuilding,
		Plot:          p.Plot,
		WritingStyle:  p.WritingStyle,
		Enjoyment:     p.Enjoyment,
	}
}

type CreateBookPayload struct {
	Title           string         `json:"title" mod:"trim" validate:"required,max=300"`
	Author          string         `json:"author" mod:"trim" validate:"required,max=200"`
	CompletionMonth int            `json:"completion_month" validate:"required,min=1,max=12"`
	CompletionYear  int            `json:"completion_year" validate:"required,min=1900,max=2100"`
	Genres          []string       `json:"genres" mod:"dive,trim" validate:"required,min=1,unique,dive,required,max=100"`
	CoverImage      *string        `json:"cover_image,omitempty" validate:"omitempty,cover"`
	Ratings         RatingsPayload `json:"ratings"`
	WhichWitch      string         `json:"which_witch" validate:"required,which_witch"`
	IsStandalone    bool           `json:"is_standalone"`
	SeriesName      *string        `json:"series_name,omitempty" mod:"trim" validate:"omitempty,max=200"`
}

// UpdateBookPayload changes only the fields that are present. Version must
// match the stored book.
type UpdateBookPayload struct {
	Version         int             `json:"version" validate:"required,min=1"`
	Title           *string         `json:"title,omitempty" mod:"trim" validate:"omitempty,required,max=300"`
	Author          *string         `json:"author,omitempty" mod:"trim" validate:"omitempty,required,max=200"`
	CompletionMonth *int            `json:"completion_month,omitempty" validate:"omitempty,min=1,max=12"`
	CompletionYear  *int            `json:"completion_year,omitempty" validate:"omitempty,min=1900,max=2100"`
	Genres          []string        `json:"genres,omitempty" mod:"dive,trim" validate:"omitempty,min=1,unique,dive,required,max=100"`
	CoverImage      *string         `json:"cover_image,omitempty" validate:"omitempty,cover"`
	Ratings         *RatingsPayload `json:"ratings,omitempty"`
	WhichWitch      *string         `json:"which_witch,omitempty" validate:"omitempty,required,which_witch"`
	IsStandalone    *bool           `json:"is_standalone,omitempty"`
	SeriesName      *string         `json:"series_name,omitempty" mod:"trim" validate:"omitempty,max=200"`
}

// CoverQuery carries the expected book version for cover uploads and removal.
type CoverQuery struct {
	Version int `query:"version" form:"version" json:"version" validate:"required,min=1"`
}
