package domain

import (
	"time"

	"feedsync/internal/domain/run"
)

// ListingCounts is a snapshot of stored rows. Upcoming compares start_date
// against the report day.
type ListingCounts struct {
	TotalJobs      int `json:"total_jobs"`
	ActiveJobs     int `json:"active_jobs"`
	ExpiredJobs    int `json:"expired_jobs"`
	TotalEvents    int `json:"total_events"`
	UpcomingEvents int `json:"upcoming_events"`
}

type SourceStat struct {
	Source       string    `json:"source"`
	Kind         string    `json:"kind"`
	Total        int       `json:"total"`
	LastUpdateAt time.Time `json:"last_update_at"`
	Stale        bool      `json:"stale"`
}

type StatusReport struct {
	ListingCounts
	Sources         []SourceStat `json:"sources"`
	LastRuns        []run.Run    `json:"last_runs"`
	FailingAdapters []string     `json:"failing_adapters"`
	DatabaseHealthy bool         `json:"database_healthy"`
	RedisHealthy    bool         `json:"redis_healthy"`
	ServerTime      time.Time    `json:"server_time"`
}
