package books

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/authors"
	"github.com/chaskitbooks/chaskit/pkg/browse"
	"github.com/chaskitbooks/chaskit/pkg/config"
	"github.com/chaskitbooks/chaskit/pkg/covers"
	"github.com/chaskitbooks/chaskit/pkg/errcodes"
	"github.com/chaskitbooks/chaskit/pkg/genres"
	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/chaskitbooks/chaskit/pkg/series"
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

var ratingColumns = []string{
	"rating_characters",
	"rating_world_building",
	"rating_plot",
	"rating_writing_style",
	"rating_enjoyment",
	"overall_rating",
}

type handler struct {
	config        *config.Config
	cache         *taxcache.Cache
	bookService   *Service
	coverService  *covers.Service
	genreService  *genres.Service
	seriesService *series.Service
	authorService *authors.Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	limit := params.Limit
	if limit == 0 {
		limit = h.config.DefaultPageSize
	}
	limit = min(limit, h.config.MaxPageSize)

	books, total, err := h.bookService.ListBooksWithTotal(ctx, ListBooksOptions{
		Limit:  &limit,
		Offset: &params.Offset,
		Query:  params.browseQuery(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Books   []*models.Book `json:"books"`
		Total   int            `json:"total"`
		HasMore bool           `json:"has_more"`
	}{books, total, browse.HasMore(params.Offset+len(books), total)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) stats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.bookService.RetrieveStats(ctx, time.Now().Year())
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, stats))
}

func (h *handler) years(c echo.Context) error {
	ctx := c.Request().Context()

	years, err := h.bookService.ListYears(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Years []int `json:"years"`
	}{years}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := CreateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book := &models.Book{
		ID:              uuid.NewString(),
		Title:           params.Title,
		Author:          params.Author,
		CompletionMonth: params.CompletionMonth,
		CompletionYear:  params.CompletionYear,
		Genres:          params.Genres,
		Ratings:         params.Ratings.ratings(),
		WhichWitch:      params.WhichWitch,
		IsStandalone:    params.IsStandalone,
		SeriesName:      params.SeriesName,
	}
	normalizeSeries(book)

	cover, err := h.coverService.Resolve(ctx, book.ID, params.CoverImage, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	book.CoverImage = cover.Cover

	if err := h.bookService.CreateBook(ctx, book); err != nil {
		h.coverService.Rollback(ctx, cover)
		return errors.WithStack(err)
	}
	h.coverService.Commit(ctx, cover)

	h.registerTaxonomy(ctx, book)

	return errors.WithStack(c.JSON(http.StatusCreated, book))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	// Bind params.
	params := UpdateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// Fetch the book.
	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if book.Version != params.Version {
		return errcodes.VersionConflict("Book")
	}

	// Keep track of what's been changed.
	opts := UpdateBookOptions{Columns: []string{}}
	set := func(cols ...string) {
		for _, col := range cols {
			if !slices.Contains(opts.Columns, col) {
				opts.Columns = append(opts.Columns, col)
			}
		}
	}

	if params.Title != nil && *params.Title != book.Title {
		book.Title = *params.Title
		set("title")
	}
	if params.Author != nil && *params.Author != book.Author {
		book.Author = *params.Author
		set("author")
	}
	if params.CompletionMonth != nil && *params.CompletionMonth != book.CompletionMonth {
		book.CompletionMonth = *params.CompletionMonth
		set("completion_month")
	}
	if params.CompletionYear != nil && *params.CompletionYear != book.CompletionYear {
		book.CompletionYear = *params.CompletionYear
		set("completion_year")
	}
	if params.Genres != nil && !slices.Equal(params.Genres, book.Genres) {
		book.Genres = params.Genres
		opts.UpdateGenres = true
	}
	if params.Ratings != nil {
		book.Ratings = params.Ratings.ratings()
		book.Recalculate()
		set(ratingColumns...)
	}
	if params.WhichWitch != nil && *params.WhichWitch != book.WhichWitch {
		book.WhichWitch = *params.WhichWitch
		set("which_witch")
	}
	if params.IsStandalone != nil && *params.IsStandalone != book.IsStandalone {
		book.IsStandalone = *params.IsStandalone
		set("is_standalone")
	}
	if params.SeriesName != nil {
		book.SeriesName = params.SeriesName
		set("series_name")
	}
	if normalizeSeries(book) {
		set("series_name")
	}

	cover, err := h.coverService.Resolve(ctx, book.ID, params.CoverImage, book.CoverImage)
	if err != nil {
		return errors.WithStack(err)
	}
	if cover.Changed {
		book.CoverImage = cover.Cover
		set("cover_image")
	}

	// Update the model.
	if err := h.bookService.UpdateBook(ctx, book, opts); err != nil {
		h.coverService.Rollback(ctx, cover)
		return errors.WithStack(err)
	}
	h.coverService.Commit(ctx, cover)

	h.registerTaxonomy(ctx, book)

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.bookService.DeleteBook(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	h.coverService.Remove(ctx, book.CoverImage)
	h.cache.Invalidate(ctx, taxcache.GenresKey, taxcache.SeriesKey, taxcache.AuthorsKey)

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) uploadCover(c echo.Context) error {
	params := CoverQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	fh, err := c.FormFile("cover")
	if err != nil {
		return errcodes.ValidationError("A cover file is required.")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	img, err := covers.ReadImage(f)
	if err != nil {
		return errors.WithStack(err)
	}

	uri := img.DataURI()
	return h.replaceCover(c, params.Version, &uri)
}

func (h *handler) deleteCover(c echo.Context) error {
	params := CoverQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	empty := ""
	return h.replaceCover(c, params.Version, &empty)
}

func (h *handler) replaceCover(c echo.Context, version int, incoming *string) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if book.Version != version {
		return errcodes.VersionConflict("Book")
	}

	cover, err := h.coverService.Resolve(ctx, book.ID, incoming, book.CoverImage)
	if err != nil {
		return errors.WithStack(err)
	}
	if !cover.Changed {
		return errors.WithStack(c.JSON(http.StatusOK, book))
	}

	book.CoverImage = cover.Cover
	err = h.bookService.UpdateBook(ctx, book, UpdateBookOptions{Columns: []string{"cover_image"}})
	if err != nil {
		h.coverService.Rollback(ctx, cover)
		return errors.WithStack(err)
	}
	h.coverService.Commit(ctx, cover)

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

// registerTaxonomy adds any new genre, author or series names used by book to
// their lists. The book is already saved so failures are only logged.
func (h *handler) registerTaxonomy(ctx context.Context, book *models.Book) {
	log := logger.FromContext(ctx)

	for _, name := range book.Genres {
		if _, err := h.genreService.FindOrCreateGenre(ctx, name); err != nil {
			log.Warn("failed to register genre", logger.Data{"genre": name, "error": err.Error()})
		}
	}
	if _, err := h.authorService.FindOrCreateAuthor(ctx, book.Author); err != nil {
		log.Warn("failed to register author", logger.Data{"author": book.Author, "error": err.Error()})
	}
	if book.SeriesName != nil {
		if _, err := h.seriesService.FindOrCreateSeries(ctx, *book.SeriesName); err != nil {
			log.Warn("failed to register series", logger.Data{"series": *book.SeriesName, "error": err.Error()})
		}
	}

	// Book counts changed even if no names were added.
	h.cache.Invalidate(ctx, taxcache.GenresKey, taxcache.SeriesKey, taxcache.AuthorsKey)
}

// normalizeSeries clears the series of standalone books and turns an empty
// series name into no series. It reports whether anything changed.
func normalizeSeries(book *models.Book) bool {
	if book.SeriesName == nil {
		return false
	}
	if book.IsStandalone || *book.SeriesName == "" {
		book.SeriesName = nil
		return true
	}
	return false
}
