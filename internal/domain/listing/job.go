package listing

import (
	"strings"
	"time"
)

type JobType string

const (
	JobTypeFullTime   JobType = "FULL_TIME"
	JobTypePartTime   JobType = "PART_TIME"
	JobTypeContractor JobType = "CONTRACTOR"
	JobTypeTemporary  JobType = "TEMPORARY"
	JobTypeIntern     JobType = "INTERN"
	JobTypeVolunteer  JobType = "VOLUNTEER"
	JobTypePerDiem    JobType = "PER_DIEM"
	JobTypeOther      JobType = "OTHER"
)

type JobStatus string

const (
	JobStatusActive  JobStatus = "active"
	JobStatusExpired JobStatus = "expired"
	JobStatusRemoved JobStatus = "removed"
)

type Job struct {
	ID          int64     `json:"id,omitempty"`
	Title       string    `json:"title" validate:"required"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	URL         string    `json:"url" validate:"required"`
	Salary      string    `json:"salary,omitempty"`
	JobType     JobType   `json:"job_type" validate:"required,oneof=FULL_TIME PART_TIME CONTRACTOR TEMPORARY INTERN VOLUNTEER PER_DIEM OTHER"`
	DatePosted  time.Time `json:"date_posted"`
	ExternalID  string    `json:"external_id,omitempty"`
	IsRemote    bool      `json:"is_remote"`
	Skills      []string  `json:"skills"`
	Source      string    `json:"source"`
	Status      JobStatus `json:"status" validate:"required,oneof=active expired removed"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

func (Job) Kind() Kind { return KindJob }

// Key is the (url, company) natural key, the one that must stay unique.
func (j Job) Key() string {
	return URLCompanyKey(j.URL, j.Company)
}

func URLCompanyKey(url, company string) string {
	return "u|" + strings.TrimSpace(url) + "|" + strings.TrimSpace(company)
}

// ExternalKey is empty when the job carries no external id.
func ExternalKey(externalID, company string) string {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return ""
	}
	return "x|" + externalID + "|" + strings.TrimSpace(company)
}
