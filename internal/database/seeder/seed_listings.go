package seeder

import (
	"context"
	"time"

	"feedsync/internal/domain/listing"
	"feedsync/internal/repository"
)

const sampleSource = "seed"

type SampleJobsSeeder struct{}

func (SampleJobsSeeder) Name() string { return "sample_jobs" }

func (SampleJobsSeeder) Run(ctx context.Context, store repository.ListingRepository) (repository.UpsertResult, error) {
	posted := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	items := []struct {
		Title, Company, URL, ExternalID string
		Remote                          bool
		Skills                          []string
	}{
		{"Registered Nurse - Med/Surg", "IU Health", "https://careers.iuhealth.org/jobs/seed-1", "SEED-1", false, []string{"BLS", "Patient Care"}},
		{"Software Engineer II", "Eli Lilly and Company", "https://careers.lilly.com/jobs/seed-2", "SEED-2", true, []string{"Go", "PostgreSQL"}},
		{"Manufacturing Technician", "Cummins Inc.", "https://cummins.jobs/seed-3", "", false, nil},
	}

	jobs := make([]listing.Job, 0, len(items))
	for _, it := range items {
		jobs = append(jobs, listing.Job{
			Title:       it.Title,
			Company:     it.Company,
			Description: "Sample listing for local development.",
			Location:    "Indianapolis, IN",
			URL:         it.URL,
			JobType:     listing.JobTypeFullTime,
			DatePosted:  posted,
			ExternalID:  it.ExternalID,
			IsRemote:    it.Remote,
			Skills:      it.Skills,
			Source:      sampleSource,
			Status:      listing.JobStatusActive,
		})
	}
	return store.UpsertJobs(ctx, jobs)
}

type SampleEventsSeeder struct {
	Now time.Time
}

func (SampleEventsSeeder) Name() string { return "sample_events" }

func (s SampleEventsSeeder) Run(ctx context.Context, store repository.ListingRepository) (repository.UpsertResult, error) {
	now := s.Now
	if now.IsZero() {
		now = time.Now()
	}
	day := func(offset int) string { return now.AddDate(0, 0, offset).Format(time.DateOnly) }

	events := []listing.Event{
		{
			Title:     "Concert on the Canal",
			Location:  "Indianapolis, IN",
			Venue:     "Indianapolis Cultural Trail",
			StartDate: day(7),
			StartTime: "18:30",
			EndTime:   "20:00",
			Category:  "Music",
			Tags:      "music, outdoors",
			URL:       "https://www.visitindy.com/event/seed-canal-concert",
			IsFree:    true,
			Price:     "Free",
			Organizer: "Visit Indy",
			Source:    sampleSource,
		},
		{
			Title:     "Garfield Park Nature Walk",
			Location:  "Indianapolis, IN",
			Venue:     "Garfield Park",
			StartDate: day(14),
			StartTime: "09:00",
			Category:  "Outdoors",
			URL:       "https://www.indy.gov/event/seed-nature-walk",
			IsFree:    true,
			Price:     "Free",
			Organizer: "Indy Parks",
			Source:    sampleSource,
		},
	}
	return store.UpsertEvents(ctx, events)
}
