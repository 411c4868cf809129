// Package pipeline runs extraction adapters, records every run in the ledger
// and admits what they return.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"feedsync/internal/domain"
	"feedsync/internal/domain/listing"
	"feedsync/internal/repository"
	"feedsync/internal/scraper"
)

// AdapterSource is the part of the registry the orchestrator needs.
type AdapterSource interface {
	List(kind listing.Kind) []scraper.Adapter
	Resolve(name string, kind listing.Kind) (scraper.Adapter, error)
}

type RunLedger interface {
	Start(ctx context.Context, scraperName string) (int64, error)
	Complete(ctx context.Context, id int64, itemsFound int) error
	Fail(ctx context.Context, scraperName string, message string) error
}

type Admitter interface {
	Admit(c listing.Candidate, kind listing.Kind) (listing.Record, error)
}

type ReportStatus string

const (
	ReportSuccess ReportStatus = "success"
	ReportFailed  ReportStatus = "failed"
	ReportSkipped ReportStatus = "skipped"
)

// AdapterReport summarises one adapter invocation.
type AdapterReport struct {
	Name       string       `json:"name"`
	Status     ReportStatus `json:"status"`
	Found      int          `json:"found"`
	Admitted   int          `json:"admitted"`
	Rejected   int          `json:"rejected"`
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
}

type Result struct {
	Kind    listing.Kind    `json:"kind"`
	Jobs    []listing.Job   `json:"jobs,omitempty"`
	Events  []listing.Event `json:"events,omitempty"`
	Reports []AdapterReport `json:"reports"`
}

// Count is the number of admitted records of the result's kind.
func (r Result) Count() int {
	if r.Kind == listing.KindEvent {
		return len(r.Events)
	}
	return len(r.Jobs)
}

type Orchestrator struct {
	adapters AdapterSource
	ledger   RunLedger
	admit    Admitter
	store    repository.ListingRepository
	timeout  time.Duration
	log      *log.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

type Params struct {
	Adapters AdapterSource
	Ledger   RunLedger
	Admitter Admitter

	// Store may be nil; Persist* then fail with domain.ErrStorageUnavailable.
	Store repository.ListingRepository

	// AdapterTimeout bounds each Scrape call. Zero leaves it to ctx.
	AdapterTimeout time.Duration
	Logger         *log.Logger
}

func NewOrchestrator(p Params) *Orchestrator {
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		adapters: p.Adapters,
		ledger:   p.Ledger,
		admit:    p.Admitter,
		store:    p.Store,
		timeout:  p.AdapterTimeout,
		log:      logger,
		running:  map[string]struct{}{},
	}
}

// RunAll runs every adapter of kind in registration order. A failing adapter
// is recorded and skipped; only a cancelled ctx stops the sweep early.
func (o *Orchestrator) RunAll(ctx context.Context, kind listing.Kind) (Result, error) {
	res := Result{Kind: kind}
	if !kind.Valid() {
		return res, fmt.Errorf("unknown listing kind %q", kind)
	}
	start := time.Now()
	adapters := o.adapters.List(kind)
	o.log.Printf("pipeline=scrape kind=%s status=started adapters=%d", kind, len(adapters))

	for _, a := range adapters {
		if err := ctx.Err(); err != nil {
			o.log.Printf("pipeline=scrape kind=%s status=cancelled err=%v", kind, err)
			return res, err
		}
		report, _ := o.runAdapter(ctx, a, kind, &res)
		res.Reports = append(res.Reports, report)
	}

	o.log.Printf("pipeline=scrape kind=%s status=finished found=%d duration=%s", kind, res.Count(), time.Since(start))
	return res, nil
}

// RunOne resolves name and runs that adapter alone. An unknown name is
// domain.ErrNotFound and leaves no ledger row; an adapter failure is
// recorded and returned.
func (o *Orchestrator) RunOne(ctx context.Context, name string, kind listing.Kind) (Result, error) {
	res := Result{Kind: kind}
	a, err := o.adapters.Resolve(name, kind)
	if err != nil {
		return res, err
	}
	report, err := o.runAdapter(ctx, a, kind, &res)
	res.Reports = append(res.Reports, report)
	if err != nil {
		return res, err
	}
	return res, nil
}

func (o *Orchestrator) runAdapter(ctx context.Context, a scraper.Adapter, kind listing.Kind, res *Result) (AdapterReport, error) {
	name := a.Name()
	report := AdapterReport{Name: name}
	start := time.Now()
	defer func() { report.DurationMS = time.Since(start).Milliseconds() }()

	if !o.acquire(name) {
		report.Status = ReportSkipped
		report.Error = domain.ErrBusy.Error()
		o.log.Printf("pipeline=scrape kind=%s adapter=%s status=skipped reason=busy", kind, name)
		return report, fmt.Errorf("%w: %s", domain.ErrBusy, name)
	}
	defer o.release(name)

	o.log.Printf("pipeline=scrape kind=%s adapter=%s status=started", kind, name)
	runID, err := o.ledger.Start(ctx, name)
	if err != nil {
		runID = 0
		o.log.Printf("pipeline=scrape kind=%s adapter=%s step=ledger_start status=error err=%v", kind, name, err)
	}

	candidates, err := o.scrape(ctx, a)
	if err != nil {
		report.Status = ReportFailed
		report.Error = err.Error()
		o.log.Printf("pipeline=scrape kind=%s adapter=%s status=failed err=%v duration=%s", kind, name, err, time.Since(start))
		// Use a fresh context so a timed out run still gets closed in the ledger.
		if lerr := o.ledger.Fail(context.WithoutCancel(ctx), name, err.Error()); lerr != nil {
			o.log.Printf("pipeline=scrape kind=%s adapter=%s step=ledger_fail status=error err=%v", kind, name, lerr)
		}
		return report, fmt.Errorf("adapter %s: %w", name, err)
	}

	report.Found = len(candidates)
	for i, c := range candidates {
		rec, err := o.admit.Admit(c, kind)
		if err != nil {
			report.Rejected++
			o.log.Printf("pipeline=scrape kind=%s adapter=%s step=admit status=rejected index=%d err=%v", kind, name, i, err)
			continue
		}
		switch r := rec.(type) {
		case listing.Job:
			res.Jobs = append(res.Jobs, r)
		case listing.Event:
			res.Events = append(res.Events, r)
		}
		report.Admitted++
	}

	if runID != 0 {
		if err := o.ledger.Complete(context.WithoutCancel(ctx), runID, report.Admitted); err != nil {
			o.log.Printf("pipeline=scrape kind=%s adapter=%s step=ledger_complete status=error err=%v", kind, name, err)
		}
	}
	report.Status = ReportSuccess
	o.log.Printf("pipeline=scrape kind=%s adapter=%s status=ok found=%d admitted=%d rejected=%d duration=%s",
		kind, name, report.Found, report.Admitted, report.Rejected, time.Since(start))
	return report, nil
}

// scrape calls the adapter under the per-adapter timeout and turns a panic
// into an error.
func (o *Orchestrator) scrape(ctx context.Context, a scraper.Adapter) (out []listing.Candidate, err error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("adapter panicked: %v", r)
		}
	}()
	return a.Scrape(ctx)
}

func (o *Orchestrator) acquire(name string) bool {
	key := strings.ToLower(name)
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.running[key]; busy {
		return false
	}
	o.running[key] = struct{}{}
	return true
}

func (o *Orchestrator) release(name string) {
	o.mu.Lock()
	delete(o.running, strings.ToLower(name))
	o.mu.Unlock()
}

func (o *Orchestrator) RunAllJobAdapters(ctx context.Context) ([]listing.Job, error) {
	res, err := o.RunAll(ctx, listing.KindJob)
	return res.Jobs, err
}

func (o *Orchestrator) RunOneJobAdapter(ctx context.Context, name string) ([]listing.Job, error) {
	res, err := o.RunOne(ctx, name, listing.KindJob)
	return res.Jobs, err
}

func (o *Orchestrator) RunAllEventAdapters(ctx context.Context) ([]listing.Event, error) {
	res, err := o.RunAll(ctx, listing.KindEvent)
	return res.Events, err
}

func (o *Orchestrator) RunOneEventAdapter(ctx context.Context, name string) ([]listing.Event, error) {
	res, err := o.RunOne(ctx, name, listing.KindEvent)
	return res.Events, err
}

func (o *Orchestrator) PersistJobs(ctx context.Context, jobs []listing.Job) (repository.UpsertResult, error) {
	if o.store == nil {
		return repository.UpsertResult{}, domain.ErrStorageUnavailable
	}
	return o.store.UpsertJobs(ctx, jobs)
}

func (o *Orchestrator) PersistEvents(ctx context.Context, events []listing.Event) (repository.UpsertResult, error) {
	if o.store == nil {
		return repository.UpsertResult{}, domain.ErrStorageUnavailable
	}
	return o.store.UpsertEvents(ctx, events)
}

// Persist writes whichever kind res carries.
func (o *Orchestrator) Persist(ctx context.Context, res Result) (repository.UpsertResult, error) {
	if res.Kind == listing.KindEvent {
		return o.PersistEvents(ctx, res.Events)
	}
	return o.PersistJobs(ctx, res.Jobs)
}
