// Package seeder loads a small fixed set of listings for local development.
// Records go through the same upsert path as scraped ones, so seeding twice
// updates in place.
package seeder

import (
	"context"

	"feedsync/internal/repository"
)

type Seeder interface {
	Name() string
	Run(ctx context.Context, store repository.ListingRepository) (repository.UpsertResult, error)
}
