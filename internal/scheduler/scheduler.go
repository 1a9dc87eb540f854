// Package scheduler drives the cron-scheduled admin sweeps: rebuilding
// C2's similarity indices and evicting expired C3 entries, on the
// cadence configured by internal/config.SchedulerConfig. Grounded on the
// teacher's internal/cron schedule parser and internal/tasks poll/cleanup
// loop idiom, collapsed to the two fixed jobs this pipeline needs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ninedomain/loreengine/internal/observability"
	"github.com/ninedomain/loreengine/internal/semanticcache"
	"github.com/ninedomain/loreengine/internal/vectorstore"
)

// cronParser accepts both standard 5-field expressions and the six-field
// form with a leading seconds field, plus the @every/@daily descriptors.
var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Config configures the scheduler's two sweeps.
type Config struct {
	Enabled           bool
	IndexRebuildCron  string
	CacheEvictionCron string
	SweepBatchSize    int
	IndexTables       []string
}

func (c Config) withDefaults() Config {
	if c.IndexRebuildCron == "" {
		c.IndexRebuildCron = "0 */6 * * *"
	}
	if c.CacheEvictionCron == "" {
		c.CacheEvictionCron = "*/15 * * * *"
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = 1000
	}
	if len(c.IndexTables) == 0 {
		c.IndexTables = []string{
			vectorstore.TableContentEmbeddings,
			vectorstore.TableLawChainEmbeddings,
			vectorstore.TableCharacterSemanticProfiles,
		}
	}
	return c
}

// Scheduler owns a robfig/cron runner and the two admin sweeps it drives.
type Scheduler struct {
	cfg    Config
	store  vectorstore.Store
	cache  *semanticcache.Cache
	logger *observability.Logger
	cron   *cron.Cron
}

// New builds a Scheduler. cache may be nil to disable the eviction sweep
// (e.g. a deployment without C3 enabled).
func New(cfg Config, store vectorstore.Store, cache *semanticcache.Cache, logger *observability.Logger) (*Scheduler, error) {
	cfg = cfg.withDefaults()
	c := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	s := &Scheduler{cfg: cfg, store: store, cache: cache, logger: logger, cron: c}

	if _, err := c.AddFunc(cfg.IndexRebuildCron, s.runIndexRebuild); err != nil {
		return nil, err
	}
	if cache != nil {
		if _, err := c.AddFunc(cfg.CacheEvictionCron, s.runCacheEviction); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start begins running the cron schedule in the background. Stop (or
// cancelling ctx) halts it.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
}

// Stop halts the cron runner, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// runIndexRebuild rebuilds C2's similarity index for every configured
// table, one at a time so a slow rebuild on one table doesn't starve the
// others of their turn on the next tick.
func (s *Scheduler) runIndexRebuild() {
	ctx := context.Background()
	for _, table := range s.cfg.IndexTables {
		start := time.Now()
		if err := s.store.RebuildIndex(ctx, table); err != nil {
			s.logger.Error(ctx, "index rebuild failed", "table", table, "error", err)
			continue
		}
		s.logger.Info(ctx, "index rebuild completed", "table", table, "duration_ms", time.Since(start).Milliseconds())
	}
}

// runCacheEviction sweeps expired C3 entries in bounded batches.
func (s *Scheduler) runCacheEviction() {
	ctx := context.Background()
	removed := s.cache.Sweep(ctx, time.Now().UTC(), s.cfg.SweepBatchSize)
	if removed > 0 {
		s.logger.Info(ctx, "cache eviction sweep completed", "removed", removed)
	}
}
