package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"feedsync/internal/database"
	"feedsync/internal/domain/run"
)

// RunRepository is the run ledger: one row per adapter invocation.
type RunRepository interface {
	Start(ctx context.Context, scraperName string) (int64, error)
	Complete(ctx context.Context, id int64, itemsFound int) error
	Fail(ctx context.Context, scraperName string, message string) error
	List(ctx context.Context, f RunFilter) ([]run.Run, error)
	LatestByName(ctx context.Context) ([]run.Run, error)
}

type RunFilter struct {
	ScraperName string
	Status      run.Status
	Limit       int
}

const (
	sqlStartRun = `INSERT INTO scraper_runs (scraper_name, start_time, status, jobs_found, created_at)
		VALUES ($1, $2, 'running', 0, $2)
		RETURNING id`

	sqlCompleteRun = `UPDATE scraper_runs
		SET end_time = $2, status = 'success', jobs_found = $3
		WHERE id = $1`

	sqlFailRunningRun = `UPDATE scraper_runs
		SET end_time = $2, status = 'failed', error_message = $3
		WHERE id = (
			SELECT id FROM scraper_runs
			WHERE scraper_name = $1 AND status = 'running'
			ORDER BY start_time DESC, id DESC
			LIMIT 1
		)`

	sqlInsertFailedRun = `INSERT INTO scraper_runs (scraper_name, start_time, end_time, status, jobs_found, error_message, created_at)
		VALUES ($1, $2, $2, 'failed', 0, $3, $2)`

	sqlLatestRuns = `SELECT DISTINCT ON (scraper_name)
			id, scraper_name, start_time, end_time, status, jobs_found, error_message, created_at
		FROM scraper_runs
		ORDER BY scraper_name, start_time DESC, id DESC`
)

type PostgresRunRepository struct {
	db  database.DB
	now func() time.Time
}

func NewPostgresRunRepository(db database.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db, now: time.Now}
}

func (r *PostgresRunRepository) Start(ctx context.Context, scraperName string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("nil db")
	}
	var id int64
	if err := r.db.QueryRow(ctx, sqlStartRun, strings.TrimSpace(scraperName), r.now().UTC()).Scan(&id); err != nil {
		return 0, fmt.Errorf("start run scraper=%s: %w", scraperName, err)
	}
	return id, nil
}

func (r *PostgresRunRepository) Complete(ctx context.Context, id int64, itemsFound int) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("nil db")
	}
	n, err := r.db.Exec(ctx, sqlCompleteRun, id, r.now().UTC(), itemsFound)
	if err != nil {
		return fmt.Errorf("complete run id=%d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("complete run id=%d: no such run", id)
	}
	return nil
}

// Fail closes the newest running row for the scraper. When there is none,
// typically because Start itself failed, a row is inserted already failed so
// the failure still shows up.
func (r *PostgresRunRepository) Fail(ctx context.Context, scraperName string, message string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("nil db")
	}
	scraperName = strings.TrimSpace(scraperName)
	message = strings.TrimSpace(message)
	if message == "" {
		message = run.UnknownError
	}
	now := r.now().UTC()

	n, err := r.db.Exec(ctx, sqlFailRunningRun, scraperName, now, message)
	if err != nil {
		return fmt.Errorf("fail run scraper=%s: %w", scraperName, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := r.db.Exec(ctx, sqlInsertFailedRun, scraperName, now, message); err != nil {
		return fmt.Errorf("insert failed run scraper=%s: %w", scraperName, err)
	}
	return nil
}

func (r *PostgresRunRepository) List(ctx context.Context, f RunFilter) ([]run.Run, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("nil db")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	q := `SELECT id, scraper_name, start_time, end_time, status, jobs_found, error_message, created_at
		FROM scraper_runs WHERE 1=1`
	args := make([]any, 0, 3)
	if name := strings.TrimSpace(f.ScraperName); name != "" {
		args = append(args, name)
		q += fmt.Sprintf(" AND scraper_name ILIKE $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY start_time DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

// LatestByName returns the newest run of every scraper, ordered by name.
func (r *PostgresRunRepository) LatestByName(ctx context.Context) ([]run.Run, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("nil db")
	}
	rows, err := r.db.Query(ctx, sqlLatestRuns)
	if err != nil {
		return nil, fmt.Errorf("latest runs: %w", err)
	}
	return scanRuns(rows)
}

func scanRuns(rows database.Rows) ([]run.Run, error) {
	defer rows.Close()

	out := make([]run.Run, 0)
	for rows.Next() {
		var (
			rr      run.Run
			status  string
			endTime sql.NullTime
			errMsg  sql.NullString
		)
		if err := rows.Scan(&rr.ID, &rr.ScraperName, &rr.StartTime, &endTime, &status, &rr.ItemsFound, &errMsg, &rr.CreatedAt); err != nil {
			return nil, err
		}
		rr.Status = run.Status(status)
		if endTime.Valid {
			t := endTime.Time.UTC()
			rr.EndTime = &t
		}
		rr.ErrorMessage = errMsg.String
		out = append(out, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
