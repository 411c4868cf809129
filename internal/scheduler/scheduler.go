// Package scheduler fires the periodic scrape and expiry jobs.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/domain/listing"
	"feedsync/internal/usecase"

	"github.com/robfig/cron/v3"
)

type Scraper interface {
	Scrape(ctx context.Context, p usecase.ScrapeParams) (usecase.ScrapeSummary, error)
}

type Expirer interface {
	ExpireStaleJobs(ctx context.Context, olderThan time.Time) (int64, error)
}

// Scheduler wraps robfig/cron. Each kind has its own entry so a slow job
// scrape never delays the event scrape.
type Scheduler struct {
	cron    *cron.Cron
	cfg     config.ScheduleConfig
	scraper Scraper
	expirer Expirer
	logger  *log.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

func New(cfg config.ScheduleConfig, scraper Scraper, expirer Expirer, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.PrintfLogger(logger)),
		)),
		cfg:     cfg,
		scraper: scraper,
		expirer: expirer,
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers the entries and starts the cron loop. The jobs run with
// ctx, so cancelling it aborts in-flight scrapes.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Printf("[scheduler] disabled")
		return nil
	}

	entries := []struct {
		name string
		spec string
		fn   func(context.Context)
	}{
		{"scrape_jobs", s.cfg.JobsSpec, func(ctx context.Context) { s.runScrape(ctx, listing.KindJob) }},
		{"scrape_events", s.cfg.EventsSpec, func(ctx context.Context) { s.runScrape(ctx, listing.KindEvent) }},
		{"expire_jobs", s.cfg.ExpireSpec, s.runExpire},
	}
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		fn := e.fn
		if _, err := s.cron.AddFunc(e.spec, func() { fn(ctx) }); err != nil {
			return fmt.Errorf("scheduler: %s spec %q: %w", e.name, e.spec, err)
		}
		s.logger.Printf("[scheduler] registered job=%s spec=%q", e.name, e.spec)
	}

	s.cron.Start()

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runScrape(ctx, listing.KindJob)
			s.runScrape(ctx, listing.KindEvent)
		}()
	}
	return nil
}

// Stop waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Printf("[scheduler] stopped")
}

func (s *Scheduler) runScrape(ctx context.Context, kind listing.Kind) {
	if s.scraper == nil || ctx.Err() != nil {
		return
	}
	start := time.Now()
	sum, err := s.scraper.Scrape(ctx, usecase.ScrapeParams{Kind: kind, Persist: true})
	if err != nil {
		s.logger.Printf("[scheduler] job=scrape kind=%s status=error duration=%s err=%v", kind, time.Since(start), err)
		return
	}
	s.logger.Printf("[scheduler] job=scrape kind=%s status=ok duration=%s found=%d added=%d updated=%d",
		kind, time.Since(start), sum.Found, sum.Added, sum.Updated)
}

func (s *Scheduler) runExpire(ctx context.Context) {
	if s.expirer == nil || s.cfg.ExpireAfterDays <= 0 || ctx.Err() != nil {
		return
	}
	cutoff := s.now().AddDate(0, 0, -s.cfg.ExpireAfterDays)
	n, err := s.expirer.ExpireStaleJobs(ctx, cutoff)
	if err != nil {
		s.logger.Printf("[scheduler] job=expire status=error err=%v", err)
		return
	}
	s.logger.Printf("[scheduler] job=expire status=ok cutoff=%s expired=%d", cutoff.Format(time.DateOnly), n)
}
