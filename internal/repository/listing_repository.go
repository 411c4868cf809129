package repository

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"feedsync/internal/database"
	"feedsync/internal/domain"
	"feedsync/internal/domain/listing"
)

// ListingRepository upserts canonical records by natural key. It never
// deletes.
type ListingRepository interface {
	UpsertJobs(ctx context.Context, jobs []listing.Job) (UpsertResult, error)
	UpsertEvents(ctx context.Context, events []listing.Event) (UpsertResult, error)
}

// UpsertResult counts are only meaningful when the call returned no error.
type UpsertResult struct {
	Inserted int `json:"added"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// AdmissionChecker re-applies the admission rules to records that may have
// skipped the validator.
type AdmissionChecker interface {
	CheckJob(j listing.Job) error
	CheckEvent(e listing.Event) error
}

const (
	sqlExistingJobKeys = `SELECT id, COALESCE(external_id, ''), url, company
		FROM job_listings
		WHERE deleted_at IS NULL
		  AND company = ANY($1)
		  AND (url = ANY($2) OR external_id = ANY($3))
		ORDER BY id ASC`

	sqlInsertJob = `INSERT INTO job_listings (
			title, company, description, location, url, salary, job_type, date_posted,
			external_id, is_remote, skills, source, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)`

	sqlUpdateJobByID = `UPDATE job_listings SET
			title = $2, description = $3, location = $4, salary = $5, job_type = $6,
			date_posted = $7, is_remote = $8, skills = $9, source = $10, status = $11,
			updated_at = $12
		WHERE id = $1`

	sqlUpdateJobByURLCompany = `UPDATE job_listings SET
			title = $3, description = $4, location = $5, salary = $6, job_type = $7,
			date_posted = $8, is_remote = $9, skills = $10, source = $11, status = $12,
			updated_at = $13
		WHERE url = $1 AND company = $2 AND deleted_at IS NULL`

	sqlExistingEventKeys = `SELECT id, url, title
		FROM events
		WHERE url = ANY($1)
		ORDER BY id ASC`

	sqlInsertEvent = `INSERT INTO events (
			title, description, location, venue, address, start_date, end_date, start_time,
			end_time, image_url, category, tags, url, price, is_free, organizer, source,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	sqlUpdateEventByID = `UPDATE events SET
			description = $2, location = $3, venue = $4, address = $5, start_date = $6,
			end_date = $7, start_time = $8, end_time = $9, image_url = $10, category = $11,
			tags = $12, price = $13, is_free = $14, organizer = $15, source = $16,
			updated_at = $17
		WHERE id = $1`

	sqlUpdateEventByURLTitle = `UPDATE events SET
			description = $3, location = $4, venue = $5, address = $6, start_date = $7,
			end_date = $8, start_time = $9, end_time = $10, image_url = $11, category = $12,
			tags = $13, price = $14, is_free = $15, organizer = $16, source = $17,
			updated_at = $18
		WHERE url = $1 AND title = $2`
)

type PostgresListingRepository struct {
	db     database.DB
	check  AdmissionChecker
	logger *log.Logger
	now    func() time.Time
}

func NewPostgresListingRepository(db database.DB, check AdmissionChecker, logger *log.Logger) *PostgresListingRepository {
	return &PostgresListingRepository{db: db, check: check, logger: logger, now: time.Now}
}

func (r *PostgresListingRepository) UpsertJobs(ctx context.Context, jobs []listing.Job) (UpsertResult, error) {
	if r == nil || r.db == nil {
		return UpsertResult{}, domain.ErrStorageUnavailable
	}
	if len(jobs) == 0 {
		return UpsertResult{}, nil
	}
	start := time.Now()

	existing, err := r.existingJobKeys(ctx, jobs)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%w: lookup job keys: %w", domain.ErrStorage, err)
	}

	var res UpsertResult
	now := r.now().UTC()
	stmts := make([]database.Statement, 0, len(jobs))
	// Keys inserted earlier in this batch, mapped to the url of that row.
	inserted := map[string]string{}

	for _, j := range jobs {
		if r.check != nil {
			if err := r.check.CheckJob(j); err != nil {
				res.Skipped++
				r.logf("persistence kind=job action=skip url=%q err=%v", j.URL, err)
				continue
			}
		}

		xk := listing.ExternalKey(j.ExternalID, j.Company)
		uk := j.Key()

		if id, ok := lookupKey(existing, xk, uk); ok {
			stmts = append(stmts, database.NewStatement(sqlUpdateJobByID,
				id, j.Title, j.Description, j.Location, nullableText(j.Salary), string(j.JobType),
				j.DatePosted, j.IsRemote, skillsOrEmpty(j.Skills), nullableText(j.Source), string(j.Status), now,
			))
			res.Updated++
			continue
		}

		if url, ok := lookupKey(inserted, xk, uk); ok {
			stmts = append(stmts, database.NewStatement(sqlUpdateJobByURLCompany,
				url, j.Company, j.Title, j.Description, j.Location, nullableText(j.Salary), string(j.JobType),
				j.DatePosted, j.IsRemote, skillsOrEmpty(j.Skills), nullableText(j.Source), string(j.Status), now,
			))
			res.Updated++
			continue
		}

		stmts = append(stmts, database.NewStatement(sqlInsertJob,
			j.Title, j.Company, j.Description, j.Location, j.URL, nullableText(j.Salary), string(j.JobType),
			j.DatePosted, nullableText(j.ExternalID), j.IsRemote, skillsOrEmpty(j.Skills), nullableText(j.Source),
			string(j.Status), now,
		))
		inserted[uk] = j.URL
		if xk != "" {
			inserted[xk] = j.URL
		}
		res.Inserted++
	}

	if err := r.db.ExecBatch(ctx, stmts); err != nil {
		r.logf("persistence kind=job status=failed statements=%d duration=%s err=%v", len(stmts), time.Since(start), err)
		return UpsertResult{}, fmt.Errorf("%w: upsert jobs: %w", domain.ErrStorage, err)
	}

	r.logf("persistence kind=job status=ok inserted=%d updated=%d skipped=%d duration=%s", res.Inserted, res.Updated, res.Skipped, time.Since(start))
	return res, nil
}

func (r *PostgresListingRepository) UpsertEvents(ctx context.Context, events []listing.Event) (UpsertResult, error) {
	if r == nil || r.db == nil {
		return UpsertResult{}, domain.ErrStorageUnavailable
	}
	if len(events) == 0 {
		return UpsertResult{}, nil
	}
	start := time.Now()

	existing, err := r.existingEventKeys(ctx, events)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%w: lookup event keys: %w", domain.ErrStorage, err)
	}

	var res UpsertResult
	now := r.now().UTC()
	stmts := make([]database.Statement, 0, len(events))
	inserted := map[string]struct{}{}

	for _, e := range events {
		if r.check != nil {
			if err := r.check.CheckEvent(e); err != nil {
				res.Skipped++
				r.logf("persistence kind=event action=skip url=%q err=%v", e.URL, err)
				continue
			}
		}

		key := e.Key()
		if id, ok := existing[key]; ok {
			stmts = append(stmts, database.NewStatement(sqlUpdateEventByID,
				id, e.Description, e.Location, e.Venue, e.Address, e.StartDate,
				nullableText(e.EndDate), nullableText(e.StartTime), nullableText(e.EndTime), nullableText(e.ImageURL),
				nullableText(e.Category), nullableText(e.Tags), nullableText(e.Price), e.IsFree,
				nullableText(e.Organizer), nullableText(e.Source), now,
			))
			res.Updated++
			continue
		}

		if _, ok := inserted[key]; ok {
			stmts = append(stmts, database.NewStatement(sqlUpdateEventByURLTitle,
				e.URL, e.Title, e.Description, e.Location, e.Venue, e.Address, e.StartDate,
				nullableText(e.EndDate), nullableText(e.StartTime), nullableText(e.EndTime), nullableText(e.ImageURL),
				nullableText(e.Category), nullableText(e.Tags), nullableText(e.Price), e.IsFree,
				nullableText(e.Organizer), nullableText(e.Source), now,
			))
			res.Updated++
			continue
		}

		created := e.CreatedAt
		if created.IsZero() {
			created = now
		}
		updated := e.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		stmts = append(stmts, database.NewStatement(sqlInsertEvent,
			e.Title, e.Description, e.Location, e.Venue, e.Address, e.StartDate,
			nullableText(e.EndDate), nullableText(e.StartTime), nullableText(e.EndTime), nullableText(e.ImageURL),
			nullableText(e.Category), nullableText(e.Tags), e.URL, nullableText(e.Price), e.IsFree,
			nullableText(e.Organizer), nullableText(e.Source), created, updated,
		))
		inserted[key] = struct{}{}
		res.Inserted++
	}

	if err := r.db.ExecBatch(ctx, stmts); err != nil {
		r.logf("persistence kind=event status=failed statements=%d duration=%s err=%v", len(stmts), time.Since(start), err)
		return UpsertResult{}, fmt.Errorf("%w: upsert events: %w", domain.ErrStorage, err)
	}

	r.logf("persistence kind=event status=ok inserted=%d updated=%d skipped=%d duration=%s", res.Inserted, res.Updated, res.Skipped, time.Since(start))
	return res, nil
}

// existingJobKeys indexes matching stored rows by both natural keys. The
// first (lowest id) row wins when several share a key.
func (r *PostgresListingRepository) existingJobKeys(ctx context.Context, jobs []listing.Job) (map[string]int64, error) {
	companies := uniqueStrings(len(jobs), true, func(i int) string { return jobs[i].Company })
	urls := uniqueStrings(len(jobs), false, func(i int) string { return jobs[i].URL })
	externalIDs := uniqueStrings(len(jobs), false, func(i int) string { return jobs[i].ExternalID })

	rows, err := r.db.Query(ctx, sqlExistingJobKeys, companies, urls, externalIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64, len(jobs))
	for rows.Next() {
		var (
			id                       int64
			externalID, url, company string
		)
		if err := rows.Scan(&id, &externalID, &url, &company); err != nil {
			return nil, err
		}
		if xk := listing.ExternalKey(externalID, company); xk != "" {
			if _, ok := out[xk]; !ok {
				out[xk] = id
			}
		}
		uk := listing.URLCompanyKey(url, company)
		if _, ok := out[uk]; !ok {
			out[uk] = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresListingRepository) existingEventKeys(ctx context.Context, events []listing.Event) (map[string]int64, error) {
	urls := uniqueStrings(len(events), false, func(i int) string { return events[i].URL })

	rows, err := r.db.Query(ctx, sqlExistingEventKeys, urls)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64, len(events))
	for rows.Next() {
		var (
			id         int64
			url, title string
		)
		if err := rows.Scan(&id, &url, &title); err != nil {
			return nil, err
		}
		k := listing.URLTitleKey(url, title)
		if _, ok := out[k]; !ok {
			out[k] = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresListingRepository) logf(format string, args ...any) {
	if r != nil && r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

// lookupKey prefers the external id key, matching how duplicates are
// detected on ingest.
func lookupKey[V any](m map[string]V, externalKey, urlKey string) (V, bool) {
	if externalKey != "" {
		if v, ok := m[externalKey]; ok {
			return v, true
		}
	}
	v, ok := m[urlKey]
	return v, ok
}

func uniqueStrings(n int, keepEmpty bool, at func(i int) string) []string {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s := strings.TrimSpace(at(i))
		if s == "" && !keepEmpty {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func skillsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullableText(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
