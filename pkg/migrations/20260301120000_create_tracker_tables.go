package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE books (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				version INTEGER NOT NULL DEFAULT 1,
				title TEXT NOT NULL,
				author TEXT NOT NULL,
				completion_month INTEGER NOT NULL,
				completion_year INTEGER NOT NULL,
				cover_image TEXT,
				rating_characters INTEGER,
				rating_world_building INTEGER,
				rating_plot INTEGER,
				rating_writing_style INTEGER,
				rating_enjoyment INTEGER,
				overall_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
				which_witch TEXT NOT NULL,
				is_standalone BOOLEAN NOT NULL DEFAULT TRUE,
				series_name TEXT
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_completion ON books (completion_year, completion_month)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_created_at ON books (created_at)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_author ON books (author)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_series_name ON books (series_name)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE book_genres (
				id TEXT PRIMARY KEY,
				book_id TEXT REFERENCES books (id) ON DELETE CASCADE NOT NULL,
				sort_order INTEGER NOT NULL,
				name TEXT NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_book_genres_book_id_sort_order ON book_genres (book_id, sort_order)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_book_genres_name ON book_genres (name)`)
		if err != nil {
			return errors.WithStack(err)
		}

		for _, table := range []string{"genres", "series", "authors"} {
			extra := ""
			if table == "genres" {
				extra = ",\n\t\t\t\tis_custom BOOLEAN NOT NULL DEFAULT TRUE"
			}
			_, err = db.Exec(`
			CREATE TABLE ` + table + ` (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL` + extra + `
			)
`)
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = db.Exec(`CREATE UNIQUE INDEX ux_` + table + `_name ON ` + table + ` (LOWER(name))`)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"authors", "series", "genres", "book_genres", "books"} {
			_, err := db.Exec("DROP TABLE IF EXISTS " + table)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
