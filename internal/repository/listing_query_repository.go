package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"feedsync/internal/database"
	"feedsync/internal/domain"
	"feedsync/internal/domain/listing"
)

type ListingQueryRepository interface {
	ListJobs(ctx context.Context, f JobFilter) ([]listing.Job, error)
	ListEvents(ctx context.Context, f EventFilter) ([]listing.Event, error)
	ExpireStaleJobs(ctx context.Context, olderThan time.Time) (int64, error)
}

type JobFilter struct {
	Company string
	Query   string
	Remote  *bool
	Limit   int
	Offset  int
}

type EventFilter struct {
	From     string
	Category string
	Limit    int
	Offset   int
}

type PostgresListingQueryRepository struct {
	db database.DB
}

func NewPostgresListingQueryRepository(db database.DB) *PostgresListingQueryRepository {
	return &PostgresListingQueryRepository{db: db}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (r *PostgresListingQueryRepository) ListJobs(ctx context.Context, f JobFilter) ([]listing.Job, error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	where := []string{"deleted_at IS NULL", "status = 'active'"}
	args := make([]any, 0, 5)
	if c := strings.TrimSpace(f.Company); c != "" {
		args = append(args, "%"+c+"%")
		where = append(where, fmt.Sprintf("company ILIKE $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if f.Remote != nil {
		args = append(args, *f.Remote)
		where = append(where, fmt.Sprintf("is_remote = $%d", len(args)))
	}
	args = append(args, limit, offset)

	q := fmt.Sprintf(`SELECT id, title, company, description, location, url, COALESCE(salary, ''), job_type,
			date_posted, COALESCE(external_id, ''), is_remote, skills, COALESCE(source, ''), status,
			created_at, updated_at
		FROM job_listings
		WHERE %s
		ORDER BY date_posted DESC NULLS LAST, id DESC
		LIMIT $%d OFFSET $%d`, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]listing.Job, 0, limit)
	for rows.Next() {
		var (
			j          listing.Job
			jobType    string
			status     string
			datePosted sql.NullTime
		)
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Description, &j.Location, &j.URL, &j.Salary, &jobType,
			&datePosted, &j.ExternalID, &j.IsRemote, &j.Skills, &j.Source, &status, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		j.JobType = listing.JobType(jobType)
		j.Status = listing.JobStatus(status)
		if datePosted.Valid {
			j.DatePosted = datePosted.Time.UTC()
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresListingQueryRepository) ListEvents(ctx context.Context, f EventFilter) ([]listing.Event, error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	where := []string{"1=1"}
	args := make([]any, 0, 4)
	if from := strings.TrimSpace(f.From); from != "" {
		args = append(args, from)
		where = append(where, fmt.Sprintf("start_date >= $%d", len(args)))
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		args = append(args, c)
		where = append(where, fmt.Sprintf("category ILIKE $%d", len(args)))
	}
	args = append(args, limit, offset)

	q := fmt.Sprintf(`SELECT id, title, description, location, venue, address, start_date,
			COALESCE(end_date, ''), COALESCE(start_time, ''), COALESCE(end_time, ''), COALESCE(image_url, ''),
			COALESCE(category, ''), COALESCE(tags, ''), url, COALESCE(price, ''), is_free,
			COALESCE(organizer, ''), COALESCE(source, ''), created_at, updated_at
		FROM events
		WHERE %s
		ORDER BY start_date ASC, id ASC
		LIMIT $%d OFFSET $%d`, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]listing.Event, 0, limit)
	for rows.Next() {
		var e listing.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.Venue, &e.Address, &e.StartDate,
			&e.EndDate, &e.StartTime, &e.EndTime, &e.ImageURL, &e.Category, &e.Tags, &e.URL, &e.Price, &e.IsFree,
			&e.Organizer, &e.Source, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpireStaleJobs marks active jobs not refreshed since olderThan as
// expired. Rows are kept.
const sqlExpireStaleJobs = `UPDATE job_listings
		SET status = 'expired', updated_at = now()
		WHERE status = 'active' AND deleted_at IS NULL AND updated_at < $1`

func (r *PostgresListingQueryRepository) ExpireStaleJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	n, err := r.db.Exec(ctx, sqlExpireStaleJobs, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: expire stale jobs: %v", domain.ErrStorage, err)
	}
	return n, nil
}
