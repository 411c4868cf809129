package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"feedsync/internal/domain"
	"feedsync/internal/domain/listing"
	"feedsync/internal/domain/run"
	"feedsync/internal/repository"
	"feedsync/internal/scraper"
	"feedsync/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name   string
	kind   listing.Kind
	scrape func(ctx context.Context) ([]listing.Candidate, error)
}

func (a *fakeAdapter) Name() string       { return a.name }
func (a *fakeAdapter) Kind() listing.Kind { return a.kind }
func (a *fakeAdapter) Scrape(ctx context.Context) ([]listing.Candidate, error) {
	return a.scrape(ctx)
}

func returning(out ...listing.Candidate) func(context.Context) ([]listing.Candidate, error) {
	return func(context.Context) ([]listing.Candidate, error) { return out, nil }
}

func failing(err error) func(context.Context) ([]listing.Candidate, error) {
	return func(context.Context) ([]listing.Candidate, error) { return nil, err }
}

type fakeLedger struct {
	mu       sync.Mutex
	runs     []run.Run
	startErr error
}

func (l *fakeLedger) Start(ctx context.Context, name string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.startErr != nil {
		return 0, l.startErr
	}
	id := int64(len(l.runs) + 1)
	l.runs = append(l.runs, run.Run{ID: id, ScraperName: name, Status: run.StatusRunning})
	return id, nil
}

func (l *fakeLedger) Complete(ctx context.Context, id int64, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range l.runs {
		if l.runs[i].ID == id {
			l.runs[i].Status = run.StatusSuccess
			l.runs[i].ItemsFound = n
			return nil
		}
	}
	return fmt.Errorf("no run %d", id)
}

func (l *fakeLedger) Fail(ctx context.Context, name, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := len(l.runs) - 1; i >= 0; i-- {
		if l.runs[i].ScraperName == name && l.runs[i].Status == run.StatusRunning {
			l.runs[i].Status = run.StatusFailed
			l.runs[i].ErrorMessage = message
			return nil
		}
	}
	l.runs = append(l.runs, run.Run{ID: int64(len(l.runs) + 1), ScraperName: name, Status: run.StatusFailed, ErrorMessage: message})
	return nil
}

func (l *fakeLedger) snapshot() []run.Run {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]run.Run(nil), l.runs...)
}

type fakeStore struct {
	jobs   []listing.Job
	events []listing.Event
}

func (s *fakeStore) UpsertJobs(ctx context.Context, jobs []listing.Job) (repository.UpsertResult, error) {
	s.jobs = append(s.jobs, jobs...)
	return repository.UpsertResult{Inserted: len(jobs)}, nil
}

func (s *fakeStore) UpsertEvents(ctx context.Context, events []listing.Event) (repository.UpsertResult, error) {
	s.events = append(s.events, events...)
	return repository.UpsertResult{Inserted: len(events)}, nil
}

func job(title string) listing.Candidate {
	return listing.Candidate{
		"title":   title,
		"company": "Acme",
		"url":     "https://acme.example/jobs/" + strings.ToLower(title),
	}
}

func newTestOrchestrator(t *testing.T, adapters ...scraper.Adapter) (*Orchestrator, *fakeLedger, *bytes.Buffer) {
	t.Helper()
	reg := scraper.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, reg.Register(a))
	}
	ledger := &fakeLedger{}
	var buf bytes.Buffer
	o := NewOrchestrator(Params{
		Adapters:       reg,
		Ledger:         ledger,
		Admitter:       validation.NewWithClock(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }),
		AdapterTimeout: time.Second,
		Logger:         log.New(&buf, "", 0),
	})
	return o, ledger, &buf
}

func TestRunAll_ContinuesPastFailures(t *testing.T) {
	o, ledger, _ := newTestOrchestrator(t,
		&fakeAdapter{name: "a", kind: listing.KindJob, scrape: returning(job("One"), job("Two"))},
		&fakeAdapter{name: "b", kind: listing.KindJob, scrape: failing(fmt.Errorf("%w: status 503", domain.ErrTransport))},
		&fakeAdapter{name: "c", kind: listing.KindJob, scrape: returning(job("Three"))},
		&fakeAdapter{name: "parks", kind: listing.KindEvent, scrape: returning()},
	)

	res, err := o.RunAll(context.Background(), listing.KindJob)
	require.NoError(t, err)
	require.Len(t, res.Jobs, 3)
	assert.Equal(t, []string{"One", "Two", "Three"}, []string{res.Jobs[0].Title, res.Jobs[1].Title, res.Jobs[2].Title})
	assert.Equal(t, 3, res.Count())

	runs := ledger.snapshot()
	require.Len(t, runs, 3, "event adapters are not run")
	assert.Equal(t, run.StatusSuccess, runs[0].Status)
	assert.Equal(t, 2, runs[0].ItemsFound)
	assert.Equal(t, run.StatusFailed, runs[1].Status)
	assert.Equal(t, "transport error: status 503", runs[1].ErrorMessage)
	assert.Equal(t, run.StatusSuccess, runs[2].Status)
	assert.Equal(t, 1, runs[2].ItemsFound)

	require.Len(t, res.Reports, 3)
	assert.Equal(t, ReportFailed, res.Reports[1].Status)
}

func TestRunAll_RejectedCandidatesAreLoggedAndCounted(t *testing.T) {
	bad := listing.Candidate{"title": "No URL", "company": "Acme"}
	o, ledger, logs := newTestOrchestrator(t,
		&fakeAdapter{name: "a", kind: listing.KindJob, scrape: returning(job("Good"), bad)},
	)

	res, err := o.RunAll(context.Background(), listing.KindJob)
	require.NoError(t, err)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, 2, res.Reports[0].Found)
	assert.Equal(t, 1, res.Reports[0].Admitted)
	assert.Equal(t, 1, res.Reports[0].Rejected)
	assert.Equal(t, 1, ledger.snapshot()[0].ItemsFound)
	assert.Contains(t, logs.String(), "status=rejected")
}

func TestRunAll_RecoversPanics(t *testing.T) {
	o, ledger, _ := newTestOrchestrator(t,
		&fakeAdapter{name: "boom", kind: listing.KindEvent, scrape: func(context.Context) ([]listing.Candidate, error) {
			panic("nil selection")
		}},
		&fakeAdapter{name: "ok", kind: listing.KindEvent, scrape: returning(listing.Candidate{
			"title": "Concert", "start_date": "2025-07-04", "url": "https://e.example/1",
		})},
	)

	res, err := o.RunAll(context.Background(), listing.KindEvent)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	runs := ledger.snapshot()
	assert.Equal(t, run.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "nil selection")
	assert.Equal(t, run.StatusSuccess, runs[1].Status)
}

func TestRunAll_TimeoutFailsTheAdapter(t *testing.T) {
	o, ledger, _ := newTestOrchestrator(t,
		&fakeAdapter{name: "slow", kind: listing.KindJob, scrape: func(ctx context.Context) ([]listing.Candidate, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
	)
	o.timeout = 10 * time.Millisecond

	res, err := o.RunAll(context.Background(), listing.KindJob)
	require.NoError(t, err)
	assert.Empty(t, res.Jobs)

	runs := ledger.snapshot()
	require.Len(t, runs, 1)
	assert.Equal(t, run.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "deadline exceeded")
}

func TestRunAll_LedgerOutageDoesNotAbort(t *testing.T) {
	o, ledger, logs := newTestOrchestrator(t,
		&fakeAdapter{name: "a", kind: listing.KindJob, scrape: returning(job("One"))},
	)
	ledger.startErr = errors.New("connection refused")

	res, err := o.RunAll(context.Background(), listing.KindJob)
	require.NoError(t, err)
	assert.Len(t, res.Jobs, 1)
	assert.Contains(t, logs.String(), "step=ledger_start status=error")
}

func TestRunAll_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o, ledger, _ := newTestOrchestrator(t,
		&fakeAdapter{name: "a", kind: listing.KindJob, scrape: func(context.Context) ([]listing.Candidate, error) {
			cancel()
			return []listing.Candidate{job("One")}, nil
		}},
		&fakeAdapter{name: "b", kind: listing.KindJob, scrape: returning(job("Two"))},
	)

	res, err := o.RunAll(ctx, listing.KindJob)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Jobs, 1)
	runs := ledger.snapshot()
	require.Len(t, runs, 1)
	assert.Equal(t, run.StatusSuccess, runs[0].Status, "a finished run is closed even after cancel")
	assert.Equal(t, 1, runs[0].ItemsFound)
}

func TestRunOne_CompletesRunWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o, ledger, logs := newTestOrchestrator(t,
		&fakeAdapter{name: "lilly", kind: listing.KindJob, scrape: func(context.Context) ([]listing.Candidate, error) {
			cancel()
			return []listing.Candidate{job("One")}, nil
		}},
	)

	jobs, err := o.RunOneJobAdapter(ctx, "lilly")
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	runs := ledger.snapshot()
	require.Len(t, runs, 1)
	assert.Equal(t, run.StatusSuccess, runs[0].Status)
	assert.Equal(t, 1, runs[0].ItemsFound)
	assert.NotContains(t, logs.String(), "step=ledger_complete")
}

func TestRunAllJobAdapters_ReturnsOnlyJobs(t *testing.T) {
	o, ledger, _ := newTestOrchestrator(t,
		&fakeAdapter{name: "lilly", kind: listing.KindJob, scrape: returning(job("One"))},
		&fakeAdapter{name: "parks", kind: listing.KindEvent, scrape: returning(listing.Candidate{
			"title": "Egg Hunt", "start_date": "2025-04-12", "url": "https://parks.example/egg",
		})},
		&fakeAdapter{name: "roche", kind: listing.KindJob, scrape: failing(fmt.Errorf("%w: bad json", domain.ErrParse))},
		&fakeAdapter{name: "cummins", kind: listing.KindJob, scrape: returning(job("Two"))},
	)

	jobs, err := o.RunAllJobAdapters(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "One", jobs[0].Title)
	assert.Equal(t, "Two", jobs[1].Title)

	runs := ledger.snapshot()
	require.Len(t, runs, 3)
	for _, r := range runs {
		assert.NotEqual(t, "parks", r.ScraperName)
	}

	res, err := o.RunAll(context.Background(), listing.KindJob)
	require.NoError(t, err)
	assert.Equal(t, res.Jobs, jobs)
}

func TestRunAllEventAdapters_ReturnsOnlyEvents(t *testing.T) {
	event := func(title string) listing.Candidate {
		return listing.Candidate{
			"title":      title,
			"start_date": "2025-04-12",
			"url":        "https://parks.example/" + strings.ToLower(title),
		}
	}
	o, ledger, _ := newTestOrchestrator(t,
		&fakeAdapter{name: "lilly", kind: listing.KindJob, scrape: returning(job("One"))},
		&fakeAdapter{name: "parks", kind: listing.KindEvent, scrape: returning(event("Hunt"), event("Concert"))},
		&fakeAdapter{name: "library", kind: listing.KindEvent, scrape: failing(fmt.Errorf("%w: status 500", domain.ErrTransport))},
	)

	events, err := o.RunAllEventAdapters(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Hunt", events[0].Title)
	assert.Equal(t, "Concert", events[1].Title)

	runs := ledger.snapshot()
	require.Len(t, runs, 2)
	assert.Equal(t, run.StatusSuccess, runs[0].Status)
	assert.Equal(t, 2, runs[0].ItemsFound)
	assert.Equal(t, run.StatusFailed, runs[1].Status)

	res, err := o.RunAll(context.Background(), listing.KindEvent)
	require.NoError(t, err)
	assert.Equal(t, res.Events, events)
}

func TestRunOne_UnknownNameWritesNoLedgerRow(t *testing.T) {
	o, ledger, _ := newTestOrchestrator(t,
		&fakeAdapter{name: "lilly", kind: listing.KindJob, scrape: returning(job("One"))},
	)

	_, err := o.RunOne(context.Background(), "nonexistent", listing.KindJob)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Empty(t, ledger.snapshot())
}

func TestRunOne_SubstringMatch(t *testing.T) {
	o, _, _ := newTestOrchestrator(t,
		&fakeAdapter{name: "noblesville-parks", kind: listing.KindEvent, scrape: returning(listing.Candidate{
			"title": "Egg Hunt", "start_date": "2025-04-12", "url": "https://parks.example/egg",
		})},
	)

	events, err := o.RunOneEventAdapter(context.Background(), "parks")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Egg Hunt", events[0].Title)
}

func TestRunOne_FailureIsRecordedAndReturned(t *testing.T) {
	o, ledger, _ := newTestOrchestrator(t,
		&fakeAdapter{name: "roche", kind: listing.KindJob, scrape: failing(fmt.Errorf("%w: bad json", domain.ErrParse))},
	)

	_, err := o.RunOneJobAdapter(context.Background(), "roche")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrParse))

	runs := ledger.snapshot()
	require.Len(t, runs, 1)
	assert.Equal(t, run.StatusFailed, runs[0].Status)
	assert.Equal(t, "parse error: bad json", runs[0].ErrorMessage)
}

func TestRunOne_BusyAdapter(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	o, ledger, _ := newTestOrchestrator(t,
		&fakeAdapter{name: "cummins", kind: listing.KindJob, scrape: func(context.Context) ([]listing.Candidate, error) {
			close(entered)
			<-release
			return []listing.Candidate{job("One")}, nil
		}},
	)

	done := make(chan error, 1)
	go func() {
		_, err := o.RunOne(context.Background(), "cummins", listing.KindJob)
		done <- err
	}()
	<-entered

	_, err := o.RunOne(context.Background(), "cummins", listing.KindJob)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBusy))

	res, err := o.RunAll(context.Background(), listing.KindJob)
	require.NoError(t, err)
	assert.Equal(t, ReportSkipped, res.Reports[0].Status)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, ledger.snapshot(), 1, "skipped runs leave no ledger row")
	assert.True(t, o.acquire("cummins"), "lock is released after the run")
}

func TestPersist(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	_, err := o.PersistJobs(context.Background(), []listing.Job{{Title: "x"}})
	assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))

	store := &fakeStore{}
	o.store = store
	got, err := o.Persist(context.Background(), Result{Kind: listing.KindEvent, Events: []listing.Event{{Title: "e"}}})
	require.NoError(t, err)
	assert.Equal(t, repository.UpsertResult{Inserted: 1}, got)
	assert.Len(t, store.events, 1)
	assert.Empty(t, store.jobs)
}
