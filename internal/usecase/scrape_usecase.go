package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"

	"feedsync/internal/domain/listing"
	"feedsync/internal/domain/run"
	"feedsync/internal/pipeline"
	"feedsync/internal/repository"
	"feedsync/internal/scraper"
)

type ScrapeRunner interface {
	RunAll(ctx context.Context, kind listing.Kind) (pipeline.Result, error)
	RunOne(ctx context.Context, name string, kind listing.Kind) (pipeline.Result, error)
	Persist(ctx context.Context, res pipeline.Result) (repository.UpsertResult, error)
}

type RunLister interface {
	List(ctx context.Context, f repository.RunFilter) ([]run.Run, error)
}

type SourceLister interface {
	Sources() []scraper.SourceInfo
}

type ListingsNotifier interface {
	NotifyListingsUpdated(kind listing.Kind, found, added, updated int)
}

type ScrapeParams struct {
	Kind    listing.Kind
	Adapter string
	Persist bool
}

type ScrapeSummary struct {
	Kind      listing.Kind             `json:"kind"`
	Adapter   string                   `json:"adapter,omitempty"`
	Found     int                      `json:"found"`
	Added     int                      `json:"added"`
	Updated   int                      `json:"updated"`
	Skipped   int                      `json:"skipped"`
	Persisted bool                     `json:"persisted"`
	Reports   []pipeline.AdapterReport `json:"reports"`
	Message   string                   `json:"message"`
}

type ScrapeUsecase interface {
	Scrape(ctx context.Context, p ScrapeParams) (ScrapeSummary, error)
	ListRuns(ctx context.Context, f repository.RunFilter) ([]run.Run, error)
	Sources() []scraper.SourceInfo
}

type Scrape struct {
	runner  ScrapeRunner
	runs    RunLister
	sources SourceLister
	cache   ListingsInvalidator
	notify  ListingsNotifier
	logger  *log.Logger
}

func NewScrapeUsecase(runner ScrapeRunner, runs RunLister, sources SourceLister, cache ListingsInvalidator, notify ListingsNotifier, logger *log.Logger) *Scrape {
	if logger == nil {
		logger = log.Default()
	}
	return &Scrape{runner: runner, runs: runs, sources: sources, cache: cache, notify: notify, logger: logger}
}

// Scrape runs one adapter or all of them and, unless it is a dry run,
// persists what was admitted. Lookup, busy and adapter errors from the
// orchestrator are returned unchanged.
func (u *Scrape) Scrape(ctx context.Context, p ScrapeParams) (ScrapeSummary, error) {
	if !p.Kind.Valid() {
		return ScrapeSummary{}, ErrInvalidInput
	}
	name := strings.TrimSpace(p.Adapter)
	summary := ScrapeSummary{Kind: p.Kind, Adapter: name}

	var (
		res pipeline.Result
		err error
	)
	if name == "" {
		res, err = u.runner.RunAll(ctx, p.Kind)
	} else {
		res, err = u.runner.RunOne(ctx, name, p.Kind)
	}
	summary.Reports = res.Reports
	if err != nil {
		return summary, err
	}
	summary.Found = res.Count()

	if p.Persist {
		up, err := u.runner.Persist(ctx, res)
		if err != nil {
			u.logger.Printf("usecase=scrape kind=%s step=persist status=error err=%v", p.Kind, err)
			return summary, err
		}
		summary.Persisted = true
		summary.Added, summary.Updated, summary.Skipped = up.Inserted, up.Updated, up.Skipped
		if up.Inserted+up.Updated > 0 {
			u.afterWrite(ctx, summary)
		}
	}

	summary.Message = scrapeMessage(summary)
	u.logger.Printf("usecase=scrape kind=%s adapter=%q found=%d added=%d updated=%d skipped=%d persisted=%t",
		p.Kind, name, summary.Found, summary.Added, summary.Updated, summary.Skipped, summary.Persisted)
	return summary, nil
}

func (u *Scrape) afterWrite(ctx context.Context, s ScrapeSummary) {
	if u.cache != nil {
		if err := u.cache.InvalidateListings(ctx, s.Kind); err != nil {
			u.logger.Printf("usecase=scrape kind=%s step=cache_invalidate status=error err=%v", s.Kind, err)
		}
	}
	if u.notify != nil {
		u.notify.NotifyListingsUpdated(s.Kind, s.Found, s.Added, s.Updated)
	}
}

func scrapeMessage(s ScrapeSummary) string {
	label := "Job"
	if s.Kind == listing.KindEvent {
		label = "Event"
	}
	subject := label + " scraping"
	if s.Adapter != "" {
		subject += " for " + s.Adapter
	}
	if !s.Persisted {
		return fmt.Sprintf("%s completed successfully. Found %d %s.", subject, s.Found, s.Kind.Plural())
	}
	return fmt.Sprintf("%s completed successfully. Found %d %s, added %d, updated %d.",
		subject, s.Found, s.Kind.Plural(), s.Added, s.Updated)
}

func (u *Scrape) ListRuns(ctx context.Context, f repository.RunFilter) ([]run.Run, error) {
	if u.runs == nil {
		return nil, ErrInternal
	}
	if f.Status != "" && f.Status != run.StatusRunning && f.Status != run.StatusSuccess && f.Status != run.StatusFailed {
		return nil, ErrInvalidInput
	}
	out, err := u.runs.List(ctx, f)
	if err != nil {
		u.logger.Printf("usecase=runs status=error err=%v", err)
		return nil, ErrInternal
	}
	return out, nil
}

func (u *Scrape) Sources() []scraper.SourceInfo {
	if u.sources == nil {
		return nil
	}
	return u.sources.Sources()
}
