package migrations

import (
	"context"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		now := time.Now()

		genres := make([]*models.Genre, 0, len(taxcache.DefaultGenreNames))
		for _, name := range taxcache.DefaultGenreNames {
			genres = append(genres, &models.Genre{
				ID:        uuid.NewString(),
				CreatedAt: now,
				UpdatedAt: now,
				Name:      name,
			})
		}
		_, err := db.NewInsert().Model(&genres).Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		authors := make([]*models.Author, 0, len(taxcache.DefaultAuthorNames))
		for _, name := range taxcache.DefaultAuthorNames {
			authors = append(authors, &models.Author{
				ID:        uuid.NewString(),
				CreatedAt: now,
				UpdatedAt: now,
				Name:      name,
			})
		}
		_, err = db.NewInsert().Model(&authors).Exec(ctx)
		return errors.WithStack(err)
	}

	down := func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDelete().
			Model((*models.Genre)(nil)).
			Where("name IN (?)", bun.In(taxcache.DefaultGenreNames)).
			Where("is_custom = ?", false).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.NewDelete().
			Model((*models.Author)(nil)).
			Where("name IN (?)", bun.In(taxcache.DefaultAuthorNames)).
			Exec(ctx)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
