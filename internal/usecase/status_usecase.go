package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"feedsync/internal/domain"
	"feedsync/internal/domain/run"
	"feedsync/internal/repository"
)

const (
	// DefaultStaleAfter marks a source stale when none of its rows changed
	// for this long.
	DefaultStaleAfter = 72 * time.Hour

	pingTimeout = 2 * time.Second
)

type StatusUsecase interface {
	Report(ctx context.Context) (*domain.StatusReport, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type LatestRuns interface {
	LatestByName(ctx context.Context) ([]run.Run, error)
}

type Status struct {
	repo       repository.StatusRepository
	runs       LatestRuns
	db         pinger
	redis      pinger
	staleAfter time.Duration
	logger     *log.Logger
	now        func() time.Time
}

func NewStatusUsecase(repo repository.StatusRepository, runs LatestRuns, db, redis pinger, staleAfter time.Duration, logger *log.Logger) *Status {
	return &Status{
		repo:       repo,
		runs:       runs,
		db:         db,
		redis:      redis,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Report gathers stored counts, per-source freshness and the latest run of
// every adapter. Only the counts are required; the rest degrade to empty.
func (u *Status) Report(ctx context.Context) (*domain.StatusReport, error) {
	now := u.now().UTC()

	var dbOK, redisOK bool
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); dbOK = healthy(ctx, u.db) }()
	go func() { defer wg.Done(); redisOK = healthy(ctx, u.redis) }()

	counts, err := u.repo.Counts(ctx, now.Format("2006-01-02"))
	if err != nil {
		wg.Wait()
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	rep := &domain.StatusReport{
		ListingCounts:   counts,
		Sources:         []domain.SourceStat{},
		LastRuns:        []run.Run{},
		FailingAdapters: []string{},
		ServerTime:      now,
	}

	if sources, err := u.repo.SourceStats(ctx); err != nil {
		u.logf("usecase=status step=sources status=error err=%v", err)
	} else {
		for i := range sources {
			sources[i].Stale = u.isStale(sources[i].LastUpdateAt, now)
		}
		rep.Sources = sources
	}

	if u.runs != nil {
		if latest, err := u.runs.LatestByName(ctx); err != nil {
			u.logf("usecase=status step=latest_runs status=error err=%v", err)
		} else {
			rep.LastRuns = latest
			rep.FailingAdapters = failingAdapters(latest)
		}
	}

	wg.Wait()
	rep.DatabaseHealthy = dbOK
	rep.RedisHealthy = redisOK
	return rep, nil
}

func (u *Status) isStale(last, now time.Time) bool {
	if u.staleAfter <= 0 {
		return false
	}
	return last.IsZero() || now.Sub(last) > u.staleAfter
}

func (u *Status) logf(format string, args ...any) {
	if u.logger != nil {
		u.logger.Printf(format, args...)
	}
}

func failingAdapters(latest []run.Run) []string {
	out := []string{}
	for _, r := range latest {
		if r.Status == run.StatusFailed {
			out = append(out, r.ScraperName)
		}
	}
	sort.Strings(out)
	return out
}

func healthy(ctx context.Context, p pinger) bool {
	if p == nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Ping(pingCtx) == nil
}
