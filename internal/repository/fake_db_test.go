package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"feedsync/internal/database"
	"feedsync/internal/domain/listing"
	"feedsync/internal/domain/run"
)

type storedJob struct {
	listing.Job
	Deleted bool
}

type fakeDB struct {
	mu sync.Mutex

	nextID int64
	runs   []run.Run
	jobs   []storedJob
	events []listing.Event

	batchErr   error
	queryErr   error
	batches    int
	lastBatch  []database.Statement
	keyQueries int
}

func newFakeDB() *fakeDB {
	return &fakeDB{nextID: 1}
}

func (db *fakeDB) id() int64 {
	id := db.nextID
	db.nextID++
	return id
}

func (db *fakeDB) Ping(ctx context.Context) error { return nil }
func (db *fakeDB) Close() error                   { return nil }
func (db *fakeDB) SQLDB() *sql.DB                 { return nil }

func (db *fakeDB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch query {
	case sqlStartRun:
		id := db.id()
		start := args[1].(time.Time)
		db.runs = append(db.runs, run.Run{
			ID:          id,
			ScraperName: args[0].(string),
			StartTime:   start,
			Status:      run.StatusRunning,
			CreatedAt:   start,
		})
		return fakeRow{vals: []any{id}}

	case sqlListingCounts:
		if db.queryErr != nil {
			return fakeRow{err: db.queryErr}
		}
		today := args[0].(string)
		var total, active, expired, upcoming int
		for _, j := range db.jobs {
			if j.Deleted {
				continue
			}
			total++
			switch j.Status {
			case listing.JobStatusActive:
				active++
			case listing.JobStatusExpired:
				expired++
			}
		}
		for _, e := range db.events {
			if e.StartDate >= today {
				upcoming++
			}
		}
		return fakeRow{vals: []any{total, active, expired, len(db.events), upcoming}}
	}
	return fakeRow{err: fmt.Errorf("unexpected query row: %s", query)}
}

func (db *fakeDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch query {
	case sqlExpireStaleJobs:
		if db.queryErr != nil {
			return 0, db.queryErr
		}
		cutoff := args[0].(time.Time)
		var n int64
		for i := range db.jobs {
			j := &db.jobs[i]
			if j.Deleted || j.Status != listing.JobStatusActive || !j.UpdatedAt.Before(cutoff) {
				continue
			}
			j.Status = listing.JobStatusExpired
			n++
		}
		return n, nil

	case sqlCompleteRun:
		id := args[0].(int64)
		for i := range db.runs {
			if db.runs[i].ID == id {
				end := args[1].(time.Time)
				db.runs[i].EndTime = &end
				db.runs[i].Status = run.StatusSuccess
				db.runs[i].ItemsFound = args[2].(int)
				return 1, nil
			}
		}
		return 0, nil

	case sqlFailRunningRun:
		name := args[0].(string)
		idx := -1
		for i, r := range db.runs {
			if r.ScraperName != name || r.Status != run.StatusRunning {
				continue
			}
			if idx < 0 || r.StartTime.After(db.runs[idx].StartTime) ||
				(r.StartTime.Equal(db.runs[idx].StartTime) && r.ID > db.runs[idx].ID) {
				idx = i
			}
		}
		if idx < 0 {
			return 0, nil
		}
		end := args[1].(time.Time)
		db.runs[idx].EndTime = &end
		db.runs[idx].Status = run.StatusFailed
		db.runs[idx].ErrorMessage = args[2].(string)
		return 1, nil

	case sqlInsertFailedRun:
		at := args[1].(time.Time)
		db.runs = append(db.runs, run.Run{
			ID:           db.id(),
			ScraperName:  args[0].(string),
			StartTime:    at,
			EndTime:      &at,
			Status:       run.StatusFailed,
			ErrorMessage: args[2].(string),
			CreatedAt:    at,
		})
		return 1, nil
	}
	return 0, fmt.Errorf("unexpected exec: %s", query)
}

func (db *fakeDB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.queryErr != nil {
		return nil, db.queryErr
	}

	switch query {
	case sqlExistingJobKeys:
		db.keyQueries++
		companies := toSet(args[0].([]string))
		urls := toSet(args[1].([]string))
		externalIDs := toSet(args[2].([]string))
		var out [][]any
		for _, j := range db.sortedJobs() {
			if j.Deleted {
				continue
			}
			if _, ok := companies[j.Company]; !ok {
				continue
			}
			_, urlHit := urls[j.URL]
			_, extHit := externalIDs[j.ExternalID]
			if !urlHit && !(extHit && j.ExternalID != "") {
				continue
			}
			out = append(out, []any{j.ID, j.ExternalID, j.URL, j.Company})
		}
		return &fakeRows{rows: out}, nil

	case sqlLatestRuns:
		latest := map[string]run.Run{}
		for _, r := range db.runs {
			cur, ok := latest[r.ScraperName]
			if !ok || r.StartTime.After(cur.StartTime) || (r.StartTime.Equal(cur.StartTime) && r.ID > cur.ID) {
				latest[r.ScraperName] = r
			}
		}
		names := make([]string, 0, len(latest))
		for n := range latest {
			names = append(names, n)
		}
		sort.Strings(names)
		var out [][]any
		for _, n := range names {
			r := latest[n]
			end := sql.NullTime{}
			if r.EndTime != nil {
				end = sql.NullTime{Time: *r.EndTime, Valid: true}
			}
			msg := sql.NullString{String: r.ErrorMessage, Valid: r.ErrorMessage != ""}
			out = append(out, []any{r.ID, r.ScraperName, r.StartTime, end, string(r.Status), r.ItemsFound, msg, r.CreatedAt})
		}
		return &fakeRows{rows: out}, nil

	case sqlSourceStats:
		type agg struct {
			kind  string
			src   string
			total int
			last  time.Time
		}
		var aggs []*agg
		find := func(kind, src string) *agg {
			if src == "" {
				src = "unknown"
			}
			for _, a := range aggs {
				if a.kind == kind && a.src == src {
					return a
				}
			}
			a := &agg{kind: kind, src: src}
			aggs = append(aggs, a)
			return a
		}
		for _, j := range db.jobs {
			if j.Deleted {
				continue
			}
			a := find("job", j.Source)
			a.total++
			if j.UpdatedAt.After(a.last) {
				a.last = j.UpdatedAt
			}
		}
		for _, e := range db.events {
			a := find("event", e.Source)
			a.total++
			if e.UpdatedAt.After(a.last) {
				a.last = e.UpdatedAt
			}
		}
		sort.SliceStable(aggs, func(i, j int) bool {
			if aggs[i].total != aggs[j].total {
				return aggs[i].total > aggs[j].total
			}
			return aggs[i].src < aggs[j].src
		})
		var out [][]any
		for _, a := range aggs {
			out = append(out, []any{a.src, a.kind, a.total, sql.NullTime{Time: a.last, Valid: true}})
		}
		return &fakeRows{rows: out}, nil

	case sqlExistingEventKeys:
		db.keyQueries++
		urls := toSet(args[0].([]string))
		var out [][]any
		for _, e := range db.events {
			if _, ok := urls[e.URL]; ok {
				out = append(out, []any{e.ID, e.URL, e.Title})
			}
		}
		return &fakeRows{rows: out}, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", query)
}

// ExecBatch applies statements to copies and swaps them in only when every
// statement succeeded.
func (db *fakeDB) ExecBatch(ctx context.Context, stmts []database.Statement) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.batches++
	db.lastBatch = stmts
	if db.batchErr != nil {
		return db.batchErr
	}

	jobs := append([]storedJob(nil), db.jobs...)
	events := append([]listing.Event(nil), db.events...)
	nextID := db.nextID

	for i, st := range stmts {
		a := st.Args
		switch st.SQL {
		case sqlInsertJob:
			j := listing.Job{
				Title: a[0].(string), Company: a[1].(string), Description: a[2].(string), Location: a[3].(string),
				URL: a[4].(string), Salary: textArg(a[5]), JobType: listing.JobType(a[6].(string)),
				DatePosted: a[7].(time.Time), ExternalID: textArg(a[8]), IsRemote: a[9].(bool),
				Skills: a[10].([]string), Source: textArg(a[11]), Status: listing.JobStatus(a[12].(string)),
				CreatedAt: a[13].(time.Time), UpdatedAt: a[13].(time.Time),
			}
			for _, ex := range jobs {
				if !ex.Deleted && ex.URL == j.URL && ex.Company == j.Company {
					return fmt.Errorf("statement %d: duplicate key (url, company)", i)
				}
			}
			j.ID = nextID
			nextID++
			jobs = append(jobs, storedJob{Job: j})

		case sqlUpdateJobByID, sqlUpdateJobByURLCompany:
			byID := st.SQL == sqlUpdateJobByID
			off := 1
			if !byID {
				off = 2
			}
			for k := range jobs {
				ex := &jobs[k]
				if byID && ex.ID != a[0].(int64) {
					continue
				}
				if !byID && (ex.Deleted || ex.URL != a[0].(string) || ex.Company != a[1].(string)) {
					continue
				}
				ex.Title = a[off].(string)
				ex.Description = a[off+1].(string)
				ex.Location = a[off+2].(string)
				ex.Salary = textArg(a[off+3])
				ex.JobType = listing.JobType(a[off+4].(string))
				ex.DatePosted = a[off+5].(time.Time)
				ex.IsRemote = a[off+6].(bool)
				ex.Skills = a[off+7].([]string)
				ex.Source = textArg(a[off+8])
				ex.Status = listing.JobStatus(a[off+9].(string))
				ex.UpdatedAt = a[off+10].(time.Time)
			}

		case sqlInsertEvent:
			e := listing.Event{
				Title: a[0].(string), Description: a[1].(string), Location: a[2].(string), Venue: a[3].(string),
				Address: a[4].(string), StartDate: a[5].(string), EndDate: textArg(a[6]), StartTime: textArg(a[7]),
				EndTime: textArg(a[8]), ImageURL: textArg(a[9]), Category: textArg(a[10]), Tags: textArg(a[11]),
				URL: a[12].(string), Price: textArg(a[13]), IsFree: a[14].(bool), Organizer: textArg(a[15]),
				Source: textArg(a[16]), CreatedAt: a[17].(time.Time), UpdatedAt: a[18].(time.Time),
			}
			for _, ex := range events {
				if ex.URL == e.URL && ex.Title == e.Title {
					return fmt.Errorf("statement %d: duplicate key (url, title)", i)
				}
			}
			e.ID = nextID
			nextID++
			events = append(events, e)

		case sqlUpdateEventByID, sqlUpdateEventByURLTitle:
			byID := st.SQL == sqlUpdateEventByID
			off := 1
			if !byID {
				off = 2
			}
			for k := range events {
				ex := &events[k]
				if byID && ex.ID != a[0].(int64) {
					continue
				}
				if !byID && (ex.URL != a[0].(string) || ex.Title != a[1].(string)) {
					continue
				}
				ex.Description = a[off].(string)
				ex.Location = a[off+1].(string)
				ex.Venue = a[off+2].(string)
				ex.Address = a[off+3].(string)
				ex.StartDate = a[off+4].(string)
				ex.EndDate = textArg(a[off+5])
				ex.StartTime = textArg(a[off+6])
				ex.EndTime = textArg(a[off+7])
				ex.ImageURL = textArg(a[off+8])
				ex.Category = textArg(a[off+9])
				ex.Tags = textArg(a[off+10])
				ex.Price = textArg(a[off+11])
				ex.IsFree = a[off+12].(bool)
				ex.Organizer = textArg(a[off+13])
				ex.Source = textArg(a[off+14])
				ex.UpdatedAt = a[off+15].(time.Time)
			}

		default:
			return fmt.Errorf("statement %d: unexpected sql", i)
		}
	}

	db.jobs = jobs
	db.events = events
	db.nextID = nextID
	return nil
}

func (db *fakeDB) sortedJobs() []storedJob {
	out := append([]storedJob(nil), db.jobs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (db *fakeDB) runsByName(name string) []run.Run {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []run.Run
	for _, r := range db.runs {
		if r.ScraperName == name {
			out = append(out, r)
		}
	}
	return out
}

func textArg(v any) string {
	if v == nil {
		return ""
	}
	return v.(string)
}

func toSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.vals, dest)
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close() {}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(r.rows[r.idx-1], dest)
}

func (r *fakeRows) Err() error { return nil }

func scanInto(vals []any, dest []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan dest mismatch")
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *int64:
			v, ok := vals[i].(int64)
			if !ok {
				return fmt.Errorf("scan type mismatch int64")
			}
			*d = v
		case *string:
			v, ok := vals[i].(string)
			if !ok {
				return fmt.Errorf("scan type mismatch string")
			}
			*d = v
		case *int:
			v, ok := vals[i].(int)
			if !ok {
				return fmt.Errorf("scan type mismatch int")
			}
			*d = v
		case *time.Time:
			v, ok := vals[i].(time.Time)
			if !ok {
				return fmt.Errorf("scan type mismatch time")
			}
			*d = v
		case *sql.NullTime:
			v, ok := vals[i].(sql.NullTime)
			if !ok {
				return fmt.Errorf("scan type mismatch null time")
			}
			*d = v
		case *sql.NullString:
			v, ok := vals[i].(sql.NullString)
			if !ok {
				return fmt.Errorf("scan type mismatch null string")
			}
			*d = v
		default:
			return fmt.Errorf("unsupported scan type %T", dest[i])
		}
	}
	return nil
}
