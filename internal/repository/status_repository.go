package repository

import (
	"context"
	"database/sql"
	"fmt"

	"feedsync/internal/database"
	"feedsync/internal/domain"
)

const (
	sqlListingCounts = `SELECT
		(SELECT COUNT(*) FROM job_listings WHERE deleted_at IS NULL),
		(SELECT COUNT(*) FROM job_listings WHERE deleted_at IS NULL AND status = 'active'),
		(SELECT COUNT(*) FROM job_listings WHERE deleted_at IS NULL AND status = 'expired'),
		(SELECT COUNT(*) FROM events),
		(SELECT COUNT(*) FROM events WHERE start_date >= $1)`

	sqlSourceStats = `SELECT COALESCE(NULLIF(source, ''), 'unknown'), 'job', COUNT(*), MAX(updated_at)
		FROM job_listings WHERE deleted_at IS NULL GROUP BY 1
		UNION ALL
		SELECT COALESCE(NULLIF(source, ''), 'unknown'), 'event', COUNT(*), MAX(updated_at)
		FROM events GROUP BY 1
		ORDER BY 3 DESC, 1`
)

type StatusRepository interface {
	// Counts compares event start dates as text, which orders correctly for
	// YYYY-MM-DD values.
	Counts(ctx context.Context, today string) (domain.ListingCounts, error)
	SourceStats(ctx context.Context) ([]domain.SourceStat, error)
}

type PostgresStatusRepository struct {
	db database.DB
}

func NewPostgresStatusRepository(db database.DB) *PostgresStatusRepository {
	return &PostgresStatusRepository{db: db}
}

func (r *PostgresStatusRepository) Counts(ctx context.Context, today string) (domain.ListingCounts, error) {
	var c domain.ListingCounts
	if r == nil || r.db == nil {
		return c, domain.ErrStorageUnavailable
	}
	err := r.db.QueryRow(ctx, sqlListingCounts, today).
		Scan(&c.TotalJobs, &c.ActiveJobs, &c.ExpiredJobs, &c.TotalEvents, &c.UpcomingEvents)
	if err != nil {
		return domain.ListingCounts{}, fmt.Errorf("%w: listing counts: %v", domain.ErrStorage, err)
	}
	return c, nil
}

func (r *PostgresStatusRepository) SourceStats(ctx context.Context) ([]domain.SourceStat, error) {
	if r == nil || r.db == nil {
		return nil, domain.ErrStorageUnavailable
	}
	rows, err := r.db.Query(ctx, sqlSourceStats)
	if err != nil {
		return nil, fmt.Errorf("%w: source stats: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	out := make([]domain.SourceStat, 0)
	for rows.Next() {
		var st domain.SourceStat
		var last sql.NullTime
		if err := rows.Scan(&st.Source, &st.Kind, &st.Total, &last); err != nil {
			return nil, fmt.Errorf("%w: source stats: %v", domain.ErrStorage, err)
		}
		if last.Valid {
			st.LastUpdateAt = last.Time.UTC()
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: source stats: %v", domain.ErrStorage, err)
	}
	return out, nil
}
