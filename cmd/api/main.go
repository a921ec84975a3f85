package main

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/chaskitbooks/chaskit/pkg/config"
	"github.com/chaskitbooks/chaskit/pkg/covers"
	"github.com/chaskitbooks/chaskit/pkg/database"
	"github.com/chaskitbooks/chaskit/pkg/migrations"
	"github.com/chaskitbooks/chaskit/pkg/server"
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/chaskitbooks/chaskit/pkg/version"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting chaskit", logger.Data{"version": version.Version})

	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	cache := taxcache.Disabled()
	var cacheStore taxcache.Store
	if cfg.RedisURL != "" {
		cacheStore, err = taxcache.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Err(err).Fatal("redis error")
		}
		cache = taxcache.New(cacheStore, cfg.TaxonomyCacheTTL)
		log.Info("taxonomy cache enabled", logger.Data{"ttl": cfg.TaxonomyCacheTTL.String()})
	}

	var coverStore covers.Store
	s3Store, err := covers.NewS3Store(ctx, cfg)
	if err != nil {
		log.Err(err).Fatal("cover storage error")
	}
	if s3Store != nil {
		coverStore = s3Store
		log.Info("cover storage enabled", logger.Data{"bucket": cfg.StorageBucket})
	} else {
		log.Warn("cover storage isn't configured, covers will stay embedded")
	}

	srv, err := server.New(cfg, server.Dependencies{
		DB:     db,
		Covers: covers.NewService(coverStore),
		Cache:  cache,
	})
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", srv.Addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}
		log.Info("server started", logger.Data{"addr": listener.Addr().String()})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	if closer, ok := cacheStore.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Err(err).Error("cache close error")
		}
	}

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
