package listing

import (
	"strings"
	"time"
)

type Event struct {
	ID          int64     `json:"id,omitempty"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Venue       string    `json:"venue"`
	Address     string    `json:"address"`
	StartDate   string    `json:"start_date" validate:"required,ymd"`
	EndDate     string    `json:"end_date,omitempty"`
	StartTime   string    `json:"start_time,omitempty"`
	EndTime     string    `json:"end_time,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        string    `json:"tags,omitempty"`
	URL         string    `json:"url" validate:"required"`
	Price       string    `json:"price,omitempty"`
	IsFree      bool      `json:"is_free"`
	Organizer   string    `json:"organizer"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Event) Kind() Kind { return KindEvent }

func (e Event) Key() string {
	return URLTitleKey(e.URL, e.Title)
}

func URLTitleKey(url, title string) string {
	return strings.TrimSpace(url) + "|" + strings.TrimSpace(title)
}
