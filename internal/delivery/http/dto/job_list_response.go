package dto

import (
	"time"

	"feedsync/internal/domain/listing"
)

type JobListResponse struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Salary      string   `json:"salary,omitempty"`
	JobType     string   `json:"job_type"`
	IsRemote    bool     `json:"is_remote"`
	Skills      []string `json:"skills"`
	Source      string   `json:"source"`
	PostedDate  string   `json:"posted_date"`
}

func NewJobListResponse(jobs []listing.Job) []JobListResponse {
	out := make([]JobListResponse, 0, len(jobs))
	for _, j := range jobs {
		posted := ""
		if !j.DatePosted.IsZero() {
			posted = j.DatePosted.UTC().Format(time.RFC3339)
		}
		skills := j.Skills
		if skills == nil {
			skills = []string{}
		}
		out = append(out, JobListResponse{
			ID:          j.ID,
			Title:       j.Title,
			Company:     j.Company,
			Location:    j.Location,
			Description: j.Description,
			URL:         j.URL,
			Salary:      j.Salary,
			JobType:     string(j.JobType),
			IsRemote:    j.IsRemote,
			Skills:      skills,
			Source:      j.Source,
			PostedDate:  posted,
		})
	}
	return out
}
