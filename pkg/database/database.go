package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/config"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type logQueryHook struct {
	log logger.Logger
}

func (*logQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (qh *logQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	data := logger.Data{"duration_ms": time.Since(event.StartTime).Milliseconds()}
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		data["error"] = event.Err.Error()
	}
	qh.log.Debug(event.Query, data)
}

// New opens the configured database and waits for it to accept queries.
func New(cfg *config.Config) (*bun.DB, error) {
	var db *bun.DB

	switch cfg.DatabaseDriver {
	case DriverSQLite, "":
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		// A single connection serializes writers and keeps :memory: databases
		// from being split across connections.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		sqldb.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.DatabaseMaxOpenConns / 2)
		sqldb.SetConnMaxLifetime(30 * time.Minute)
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.DatabaseDebug {
		db.AddQueryHook(&logQueryHook{logger.NewWithLevel("debug")})
	}

	var err error
	for i := 0; i < max(cfg.DatabaseConnectRetryCount, 1); i++ {
		_, err = db.Exec("SELECT 1")
		if err == nil {
			break
		}
		time.Sleep(cfg.DatabaseConnectRetryDelay)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if IsSQLite(db) {
		if !isMemoryDSN(cfg.DatabaseURL) {
			_, err = db.Exec("PRAGMA journal_mode=WAL")
			if err != nil {
				return nil, errors.Wrap(err, "failed to enable WAL mode")
			}
		}
		_, err = db.Exec("PRAGMA busy_timeout=?", cfg.DatabaseBusyTimeout.Milliseconds())
		if err != nil {
			return nil, errors.Wrap(err, "failed to set busy_timeout")
		}
		_, err = db.Exec("PRAGMA foreign_keys=ON")
		if err != nil {
			return nil, errors.Wrap(err, "failed to enable foreign keys")
		}
	}

	return db, nil
}

// IsSQLite reports whether db talks to SQLite.
func IsSQLite(db bun.IDB) bool {
	return db.Dialect().Name().String() == DriverSQLite
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || dsn == "file::memory:"
}
