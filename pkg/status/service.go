package status

import (
	"context"
	"sync"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/covers"
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

const (
	ComponentDatabase = "database"
	ComponentStorage  = "storage"
	ComponentCache    = "cache"

	StateOK       = "ok"
	StateDisabled = "disabled"

	checkTimeout = 3 * time.Second
)

// Status is the connection report returned by GET /status.
type Status struct {
	Connected  bool              `json:"connected"`
	Message    string            `json:"message"`
	Components map[string]string `json:"components"`
}

type Service struct {
	db     *bun.DB
	covers *covers.Service
	cache  *taxcache.Cache
}

func NewService(db *bun.DB, coverService *covers.Service, cache *taxcache.Cache) *Service {
	return &Service{db, coverService, cache}
}

type check struct {
	name    string
	enabled bool
	ping    func(ctx context.Context) error
}

// Check pings every component in parallel. Only the database decides whether
// the service counts as connected; storage and cache problems are reported but
// the API keeps working without them.
func (svc *Service) Check(ctx context.Context) *Status {
	log := logger.FromContext(ctx)

	checks := []check{
		{ComponentDatabase, true, svc.db.PingContext},
		{ComponentStorage, svc.covers.Enabled(), svc.covers.Ping},
		{ComponentCache, svc.cache.Enabled(), svc.cache.Ping},
	}

	var mu sync.Mutex
	components := make(map[string]string, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	for _, chk := range checks {
		chk := chk
		if !chk.enabled {
			mu.Lock()
			components[chk.name] = StateDisabled
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, checkTimeout)
			defer cancel()

			state := StateOK
			if err := chk.ping(cctx); err != nil {
				log.Err(err).Warn("status check failed", logger.Data{"component": chk.name})
				state = "error: " + err.Error()
			}

			mu.Lock()
			components[chk.name] = state
			mu.Unlock()
			return nil
		})
	}
	// Checks record their own failures and never return an error.
	_ = g.Wait()

	status := &Status{
		Connected:  components[ComponentDatabase] == StateOK,
		Components: components,
	}
	if status.Connected {
		status.Message = "Connected to the database"
	} else {
		status.Message = "Database unreachable"
	}
	return status
}
