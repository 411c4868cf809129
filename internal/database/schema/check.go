// Package schema verifies at startup that the tables the pipeline reads and
// writes carry the columns it expects.
package schema

import (
	"context"
	"fmt"

	"feedsync/internal/database"
)

// Required lists the consumed columns per table.
var Required = map[string][]string{
	"job_listings": {
		"id", "title", "company", "description", "location", "url", "salary", "job_type",
		"date_posted", "external_id", "is_remote", "skills", "source", "status",
		"deleted_at", "created_at", "updated_at",
	},
	"events": {
		"id", "title", "description", "location", "venue", "address", "start_date", "end_date",
		"start_time", "end_time", "image_url", "category", "tags", "url", "price", "is_free",
		"organizer", "source", "created_at", "updated_at",
	},
	"scraper_runs": {
		"id", "scraper_name", "start_time", "end_time", "status", "jobs_found", "error_message", "created_at",
	},
}

func Check(ctx context.Context, db database.DB) error {
	for _, table := range []string{"job_listings", "events", "scraper_runs"} {
		if err := EnsureTableColumns(ctx, db, table, Required[table]...); err != nil {
			return err
		}
	}
	return nil
}

func EnsureTableColumns(ctx context.Context, db database.DB, table string, columns ...string) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	if table == "" {
		return fmt.Errorf("empty table")
	}

	rows, err := db.Query(
		ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_schema='public' AND table_name=$1`,
		table,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	existing := map[string]struct{}{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return err
		}
		existing[c] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(existing) == 0 {
		return fmt.Errorf("schema mismatch: missing table %s", table)
	}

	var missing []string
	for _, col := range columns {
		if _, ok := existing[col]; !ok {
			missing = append(missing, table+"."+col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema mismatch: missing columns %v", missing)
	}
	return nil
}
