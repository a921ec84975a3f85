package taxcache

import "github.com/chaskitbooks/chaskit/pkg/models"

const (
	GenresKey  = "bookTracker_genres"
	SeriesKey  = "bookTracker_series"
	AuthorsKey = "bookTracker_authors"
)

var DefaultGenreNames = []string{
	"Epic Fantasy",
	"Romantasy",
	"Dystopian Fiction",
	"Historical Fiction",
	"Science Fiction",
	"Mystery/Thriller",
	"Contemporary Fiction",
	"Young Adult",
	"Non-Fiction",
	"Biography/Memoir",
}

var DefaultAuthorNames = []string{
	"Sarah J. Maas",
	"Brandon Sanderson",
	"Rebecca Yarros",
	"Colleen Hoover",
	"J.K. Rowling",
}

// DefaultGenres returns the built-in genre list. The entries have no IDs since
// they aren't backed by rows.
func DefaultGenres() []*models.Genre {
	genres := make([]*models.Genre, 0, len(DefaultGenreNames))
	for _, name := range DefaultGenreNames {
		genres = append(genres, &models.Genre{Name: name})
	}
	return genres
}

func DefaultAuthors() []*models.Author {
	authors := make([]*models.Author, 0, len(DefaultAuthorNames))
	for _, name := range DefaultAuthorNames {
		authors = append(authors, &models.Author{Name: name})
	}
	return authors
}

// DefaultSeries is always empty.
func DefaultSeries() []*models.Series {
	return []*models.Series{}
}
