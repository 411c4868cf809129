package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"feedsync/internal/domain"
	"feedsync/internal/domain/listing"
	"feedsync/internal/domain/run"
	"feedsync/internal/pipeline"
	"feedsync/internal/repository"
)

type mockRunner struct {
	res       pipeline.Result
	err       error
	upsert    repository.UpsertResult
	upsertErr error

	ranAll   listing.Kind
	ranOne   string
	persists int
}

func (m *mockRunner) RunAll(ctx context.Context, kind listing.Kind) (pipeline.Result, error) {
	m.ranAll = kind
	return m.res, m.err
}

func (m *mockRunner) RunOne(ctx context.Context, name string, kind listing.Kind) (pipeline.Result, error) {
	m.ranOne = name
	return m.res, m.err
}

func (m *mockRunner) Persist(ctx context.Context, res pipeline.Result) (repository.UpsertResult, error) {
	m.persists++
	return m.upsert, m.upsertErr
}

type mockInvalidator struct{ kinds []listing.Kind }

func (m *mockInvalidator) InvalidateListings(ctx context.Context, kind listing.Kind) error {
	m.kinds = append(m.kinds, kind)
	return nil
}

type mockNotifier struct{ calls []string }

func (m *mockNotifier) NotifyListingsUpdated(kind listing.Kind, found, added, updated int) {
	m.calls = append(m.calls, fmt.Sprintf("%s %d %d %d", kind, found, added, updated))
}

func threeJobs() pipeline.Result {
	return pipeline.Result{
		Kind:    listing.KindJob,
		Jobs:    []listing.Job{{Title: "a"}, {Title: "b"}, {Title: "c"}},
		Reports: []pipeline.AdapterReport{{Name: "lilly", Status: pipeline.ReportSuccess, Found: 3, Admitted: 3}},
	}
}

func TestScrapeUsecase_PersistsAndAnnounces(t *testing.T) {
	runner := &mockRunner{res: threeJobs(), upsert: repository.UpsertResult{Inserted: 2, Updated: 1}}
	inv := &mockInvalidator{}
	notify := &mockNotifier{}
	uc := NewScrapeUsecase(runner, nil, nil, inv, notify, nil)

	got, err := uc.Scrape(context.Background(), ScrapeParams{Kind: listing.KindJob, Persist: true})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := "Job scraping completed successfully. Found 3 jobs, added 2, updated 1."
	if got.Message != want {
		t.Fatalf("message = %q, want %q", got.Message, want)
	}
	if runner.ranAll != listing.KindJob || runner.persists != 1 {
		t.Fatalf("expected RunAll(job) and one persist, got %q %d", runner.ranAll, runner.persists)
	}
	if len(inv.kinds) != 1 || inv.kinds[0] != listing.KindJob {
		t.Fatalf("expected job cache invalidation, got %v", inv.kinds)
	}
	if len(notify.calls) != 1 || notify.calls[0] != "job 3 2 1" {
		t.Fatalf("unexpected notifications: %v", notify.calls)
	}
	if len(got.Reports) != 1 {
		t.Fatalf("expected reports to be carried through")
	}
}

func TestScrapeUsecase_SingleAdapterMessage(t *testing.T) {
	runner := &mockRunner{
		res:    pipeline.Result{Kind: listing.KindEvent, Events: []listing.Event{{Title: "x"}}},
		upsert: repository.UpsertResult{Updated: 1},
	}
	uc := NewScrapeUsecase(runner, nil, nil, nil, nil, nil)

	got, err := uc.Scrape(context.Background(), ScrapeParams{Kind: listing.KindEvent, Adapter: " parks ", Persist: true})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if runner.ranOne != "parks" {
		t.Fatalf("expected RunOne(parks), got %q", runner.ranOne)
	}
	want := "Event scraping for parks completed successfully. Found 1 events, added 0, updated 1."
	if got.Message != want {
		t.Fatalf("message = %q, want %q", got.Message, want)
	}
}

func TestScrapeUsecase_DryRunSkipsPersistence(t *testing.T) {
	runner := &mockRunner{res: threeJobs()}
	inv := &mockInvalidator{}
	uc := NewScrapeUsecase(runner, nil, nil, inv, nil, nil)

	got, err := uc.Scrape(context.Background(), ScrapeParams{Kind: listing.KindJob})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if runner.persists != 0 || len(inv.kinds) != 0 {
		t.Fatalf("dry run must not persist or invalidate")
	}
	if got.Message != "Job scraping completed successfully. Found 3 jobs." {
		t.Fatalf("unexpected message %q", got.Message)
	}
}

func TestScrapeUsecase_NoChangesLeaveCacheAlone(t *testing.T) {
	runner := &mockRunner{res: threeJobs(), upsert: repository.UpsertResult{Skipped: 3}}
	inv := &mockInvalidator{}
	notify := &mockNotifier{}
	uc := NewScrapeUsecase(runner, nil, nil, inv, notify, nil)

	if _, err := uc.Scrape(context.Background(), ScrapeParams{Kind: listing.KindJob, Persist: true}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(inv.kinds) != 0 || len(notify.calls) != 0 {
		t.Fatalf("expected no invalidation or notification")
	}
}

func TestScrapeUsecase_PropagatesErrors(t *testing.T) {
	notFound := fmt.Errorf("%w: adapter %q not found", domain.ErrNotFound, "nope")
	uc := NewScrapeUsecase(&mockRunner{err: notFound}, nil, nil, nil, nil, nil)
	if _, err := uc.Scrape(context.Background(), ScrapeParams{Kind: listing.KindJob, Adapter: "nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	storeDown := &mockRunner{res: threeJobs(), upsertErr: domain.ErrStorageUnavailable}
	uc = NewScrapeUsecase(storeDown, nil, nil, nil, nil, nil)
	if _, err := uc.Scrape(context.Background(), ScrapeParams{Kind: listing.KindJob, Persist: true}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	if _, err := uc.Scrape(context.Background(), ScrapeParams{Kind: "news"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

type mockRuns struct {
	got repository.RunFilter
	err error
}

func (m *mockRuns) List(ctx context.Context, f repository.RunFilter) ([]run.Run, error) {
	m.got = f
	if m.err != nil {
		return nil, m.err
	}
	return []run.Run{{ID: 1, ScraperName: "lilly", Status: run.StatusSuccess}}, nil
}

func TestScrapeUsecase_ListRuns(t *testing.T) {
	runs := &mockRuns{}
	uc := NewScrapeUsecase(nil, runs, nil, nil, nil, nil)

	out, err := uc.ListRuns(context.Background(), repository.RunFilter{ScraperName: "lilly", Status: run.StatusSuccess})
	if err != nil || len(out) != 1 {
		t.Fatalf("unexpected result: %v %v", out, err)
	}
	if runs.got.ScraperName != "lilly" {
		t.Fatalf("filter not passed through: %+v", runs.got)
	}

	if _, err := uc.ListRuns(context.Background(), repository.RunFilter{Status: "done"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	runs.err = errors.New("db down")
	if _, err := uc.ListRuns(context.Background(), repository.RunFilter{}); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}
