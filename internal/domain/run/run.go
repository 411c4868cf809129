package run

import "time"

type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// UnknownError is stored when a failure carries no message.
const UnknownError = "Unknown error"

type Run struct {
	ID           int64      `json:"id"`
	ScraperName  string     `json:"scraper_name"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Status       Status     `json:"status"`
	ItemsFound   int        `json:"jobs_found"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (r Run) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}
