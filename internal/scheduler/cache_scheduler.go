package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TPAIN22/nubian-storefront/pkg/logger"
)

// DefaultPruneSchedule runs the sweep every five minutes
const DefaultPruneSchedule = "@every 5m"

// EntityPruner drops expired entries of an in-process entity cache
type EntityPruner interface {
	PruneExpired() int
}

// ResponsePruner drops expired entries of the HTTP response cache and its
// persistent store
type ResponsePruner interface {
	PruneExpired(ctx context.Context) int
}

// CacheScheduler periodically sweeps expired cache entries so that memory
// and the persistent store do not grow with entries nobody reads again
type CacheScheduler struct {
	cron      *cron.Cron
	schedule  string
	timeout   time.Duration
	entities  EntityPruner
	responses ResponsePruner
}

func NewCacheScheduler(schedule string, entities EntityPruner, responses ResponsePruner) *CacheScheduler {
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	return &CacheScheduler{
		cron:      cron.New(),
		schedule:  schedule,
		timeout:   30 * time.Second,
		entities:  entities,
		responses: responses,
	}
}

// Start registers the sweep and starts the cron runner
func (s *CacheScheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		logger.Error("Failed to add cron job for cache pruning", err, map[string]interface{}{
			"schedule": s.schedule,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Cache scheduler started", map[string]interface{}{
		"schedule": s.schedule,
	})
	return nil
}

// RunOnce sweeps both caches and returns how many entries went
func (s *CacheScheduler) RunOnce(ctx context.Context) (entities, responses int) {
	if s.entities != nil {
		entities = s.entities.PruneExpired()
	}
	if s.responses != nil {
		responses = s.responses.PruneExpired(ctx)
	}

	logger.Debug("Expired cache entries pruned", map[string]interface{}{
		"entities":  entities,
		"responses": responses,
	})
	return entities, responses
}

// Stop stops the runner and waits for a running sweep to finish
func (s *CacheScheduler) Stop() {
	logger.Info("Stopping cache scheduler...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Cache scheduler stopped", nil)
}
