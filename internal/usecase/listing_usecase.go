package usecase

import (
	"context"
	"log"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"feedsync/internal/domain/listing"
	"feedsync/internal/repository"
)

type JobListParams struct {
	Company string
	Query   string
	Remote  *bool
	Page    int
	Limit   int
}

type EventListParams struct {
	// From keeps events starting on or after this YYYY-MM-DD date.
	From     string
	Category string
	Page     int
	Limit    int
}

type ListingUsecase interface {
	ListJobs(ctx context.Context, p JobListParams) ([]listing.Job, error)
	ListEvents(ctx context.Context, p EventListParams) ([]listing.Event, error)
}

type ListingQuery interface {
	ListJobs(ctx context.Context, f repository.JobFilter) ([]listing.Job, error)
	ListEvents(ctx context.Context, f repository.EventFilter) ([]listing.Event, error)
}

type Listings struct {
	repo     ListingQuery
	cache    ListingCache
	logger   *log.Logger
	lockWait time.Duration
}

func NewListingUsecase(repo ListingQuery, cache ListingCache, logger *log.Logger) *Listings {
	return &Listings{repo: repo, cache: cache, logger: logger, lockWait: 300 * time.Millisecond}
}

const (
	maxPageSize = 100
	lockTTL     = 30 * time.Second
	lockJitter  = 200 * time.Millisecond
)

var fromDatePattern = regexp.MustCompile(listing.DatePattern)

// NormalizePage applies the default page size and rejects out-of-range values.
func NormalizePage(page, limit int) (int, int, error) {
	if limit == 0 {
		limit = 20
	}
	if limit < 0 || limit > maxPageSize {
		return 0, 0, ErrInvalidInput
	}
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return 0, 0, ErrInvalidInput
	}
	return page, limit, nil
}

func (u *Listings) ListJobs(ctx context.Context, p JobListParams) ([]listing.Job, error) {
	page, limit, err := NormalizePage(p.Page, p.Limit)
	if err != nil {
		return nil, err
	}
	p.Page, p.Limit = page, limit

	return cachedList(ctx, u, JobsCacheKey(p), func() ([]listing.Job, error) {
		out, err := u.repo.ListJobs(ctx, repository.JobFilter{
			Company: strings.TrimSpace(p.Company),
			Query:   strings.TrimSpace(p.Query),
			Remote:  p.Remote,
			Limit:   limit,
			Offset:  (page - 1) * limit,
		})
		if err != nil {
			u.logf("[Listings] list jobs error: %v", err)
			return nil, ErrInternal
		}
		return out, nil
	})
}

func (u *Listings) ListEvents(ctx context.Context, p EventListParams) ([]listing.Event, error) {
	page, limit, err := NormalizePage(p.Page, p.Limit)
	if err != nil {
		return nil, err
	}
	p.Page, p.Limit = page, limit
	p.From = strings.TrimSpace(p.From)
	if p.From != "" && !fromDatePattern.MatchString(p.From) {
		return nil, ErrInvalidInput
	}

	return cachedList(ctx, u, EventsCacheKey(p), func() ([]listing.Event, error) {
		out, err := u.repo.ListEvents(ctx, repository.EventFilter{
			From:     p.From,
			Category: strings.TrimSpace(p.Category),
			Limit:    limit,
			Offset:   (page - 1) * limit,
		})
		if err != nil {
			u.logf("[Listings] list events error: %v", err)
			return nil, ErrInternal
		}
		return out, nil
	})
}

// cachedList is cache-aside with a short SetNX lock so concurrent misses
// on the same key do not all hit the database. A caller that loses the
// lock waits once, rereads, then loads anyway.
func cachedList[T any](ctx context.Context, u *Listings, key string, load func() ([]T, error)) ([]T, error) {
	var cached []T
	if u.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	lockKey := ListingsLockKey(key)
	locked := false
	if u.cache != nil {
		ok, err := u.cache.SetIfNotExists(ctx, lockKey, "1", lockTTL)
		switch {
		case err == nil && ok:
			locked = true
			u.logf("[Listings] Lock acquired: %s", lockKey)
		case err == nil && !ok:
			wait := u.lockWait + time.Duration(rand.Int64N(int64(lockJitter)+1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			if u.cacheGet(ctx, key, &cached) {
				return cached, nil
			}
			u.logf("[Listings] Lock wait fallback: %s", lockKey)
		}
	}

	out, err := load()
	if err == nil {
		u.cacheSet(ctx, key, out)
	}
	if locked {
		if derr := u.cache.Delete(ctx, lockKey); derr != nil {
			u.logf("[Listings] Lock release error: %s err=%v", lockKey, derr)
		}
	}
	return out, err
}

func (u *Listings) cacheGet(ctx context.Context, key string, out any) bool {
	if u.cache == nil {
		return false
	}
	hit, err := u.cache.GetJSON(ctx, key, out)
	if err == nil && hit {
		u.logf("[Listings] Cache HIT: %s", key)
		return true
	}
	u.logf("[Listings] Cache MISS: %s", key)
	return false
}

func (u *Listings) cacheSet(ctx context.Context, key string, v any) {
	if u.cache == nil {
		return
	}
	if err := u.cache.SetJSON(ctx, key, v, 0); err != nil {
		u.logf("[Listings] Cache SET error: %s err=%v", key, err)
		return
	}
	u.logf("[Listings] Cache SET: %s", key)
}

func (u *Listings) logf(format string, args ...any) {
	if u.logger != nil {
		u.logger.Printf(format, args...)
	}
}
