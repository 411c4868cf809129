package seeder

import (
	"context"
	"fmt"
	"log"
	"time"

	"feedsync/internal/repository"
)

type Runner struct {
	Seeders []Seeder
	Logger  *log.Logger
}

func (r Runner) Run(ctx context.Context, store repository.ListingRepository) error {
	if store == nil {
		return fmt.Errorf("nil store")
	}
	for _, s := range r.Seeders {
		if s == nil {
			continue
		}
		res, err := s.Run(ctx, store)
		if err != nil {
			return fmt.Errorf("seed %s: %w", s.Name(), err)
		}
		if r.Logger != nil {
			r.Logger.Printf("seeder name=%s added=%d updated=%d skipped=%d", s.Name(), res.Inserted, res.Updated, res.Skipped)
		}
	}
	return nil
}

// Defaults returns the sample seeders with event dates relative to now.
func Defaults(now time.Time) []Seeder {
	return []Seeder{
		SampleJobsSeeder{},
		SampleEventsSeeder{Now: now},
	}
}
