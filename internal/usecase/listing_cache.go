package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"feedsync/internal/domain/listing"
	"feedsync/internal/infrastructure/cache"
)

// ListingCache backs the read API. Misses and outages look the same to
// callers: they fall through to the database.
type ListingCache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	SetIfNotExists(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

// ListingsInvalidator drops every cached page of one kind after a write.
type ListingsInvalidator interface {
	InvalidateListings(ctx context.Context, kind listing.Kind) error
}

// JobsCacheKey expects params already defaulted by ListJobs. Filters are
// folded so "Lilly " and "lilly" share an entry.
func JobsCacheKey(p JobListParams) string {
	return digestKey(listing.KindJob, struct {
		Company string `json:"c"`
		Query   string `json:"q"`
		Remote  *bool  `json:"r"`
		Page    int    `json:"p"`
		Limit   int    `json:"l"`
	}{foldFilter(p.Company), foldFilter(p.Query), p.Remote, p.Page, p.Limit})
}

func EventsCacheKey(p EventListParams) string {
	return digestKey(listing.KindEvent, struct {
		From     string `json:"f"`
		Category string `json:"c"`
		Page     int    `json:"p"`
		Limit    int    `json:"l"`
	}{strings.TrimSpace(p.From), foldFilter(p.Category), p.Page, p.Limit})
}

// ListingsLockKey sits outside the listings prefix so invalidation never
// drops a held lock.
func ListingsLockKey(cacheKey string) string {
	return "lock:" + cacheKey
}

func foldFilter(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func digestKey(kind listing.Kind, params any) string {
	b, _ := json.Marshal(params)
	sum := sha256.Sum256(b)
	return cache.ListingsKeyPrefix(kind) + hex.EncodeToString(sum[:16])
}
