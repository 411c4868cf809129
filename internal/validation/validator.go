// Package validation admits or rejects adapter candidates and coerces
// admitted ones into canonical jobs and events.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"feedsync/internal/domain/listing"

	"github.com/go-playground/validator/v10"
)

var datePattern = regexp.MustCompile(listing.DatePattern)

type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func New() *Validator {
	return NewWithClock(time.Now)
}

// NewWithClock uses now for every defaulted timestamp.
func NewWithClock(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// Format only: 2025-13-45 passes.
	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		return datePattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v, now: now}
}

func (v *Validator) Admit(c listing.Candidate, kind listing.Kind) (listing.Record, error) {
	switch kind {
	case listing.KindJob:
		return v.AdmitJob(c)
	case listing.KindEvent:
		return v.AdmitEvent(c)
	}
	return nil, fmt.Errorf("unknown listing kind %q", kind)
}

func (v *Validator) AdmitJob(c listing.Candidate) (listing.Job, error) {
	r := &reader{c: c, kind: listing.KindJob}
	now := v.now().UTC()

	j := listing.Job{
		Title:       r.str("title"),
		Company:     r.str("company"),
		Description: r.str("description"),
		Location:    r.str("location"),
		URL:         r.str("url"),
		Salary:      r.str("salary"),
		JobType:     normalizeJobType(r.str("job_type")),
		ExternalID:  r.str("external_id"),
		IsRemote:    r.boolean("is_remote"),
		Skills:      r.list("skills"),
		Source:      r.str("source"),
		Status:      listing.JobStatus(strings.ToLower(r.str("status"))),
	}
	if j.Status == "" {
		j.Status = listing.JobStatusActive
	}
	if ts, ok := r.timestamp("date_posted"); ok {
		j.DatePosted = ts
	} else {
		j.DatePosted = now
	}
	if r.err != nil {
		return listing.Job{}, r.err
	}
	if err := v.CheckJob(j); err != nil {
		return listing.Job{}, err
	}
	return j, nil
}

func (v *Validator) AdmitEvent(c listing.Candidate) (listing.Event, error) {
	r := &reader{c: c, kind: listing.KindEvent}
	now := v.now().UTC()

	e := listing.Event{
		Title:       r.str("title"),
		Description: r.str("description"),
		Location:    r.str("location"),
		Venue:       r.str("venue"),
		Address:     r.str("address"),
		StartDate:   r.str("start_date"),
		EndDate:     r.str("end_date"),
		StartTime:   r.str("start_time"),
		EndTime:     r.str("end_time"),
		ImageURL:    r.str("image_url"),
		Category:    r.str("category"),
		Tags:        r.str("tags"),
		URL:         r.str("url"),
		Price:       r.str("price"),
		IsFree:      r.boolean("is_free"),
		Organizer:   r.str("organizer"),
		Source:      r.str("source"),
	}
	e.CreatedAt = now
	if ts, ok := r.timestamp("created_at"); ok {
		e.CreatedAt = ts
	}
	e.UpdatedAt = now
	if ts, ok := r.timestamp("updated_at"); ok {
		e.UpdatedAt = ts
	}
	if r.err != nil {
		return listing.Event{}, r.err
	}
	if err := v.CheckEvent(e); err != nil {
		return listing.Event{}, err
	}
	return e, nil
}

// CheckJob applies the admission rules to an already canonical job.
func (v *Validator) CheckJob(j listing.Job) error {
	return v.check(listing.KindJob, j)
}

func (v *Validator) CheckEvent(e listing.Event) error {
	return v.check(listing.KindEvent, e)
}

func (v *Validator) check(kind listing.Kind, rec any) error {
	err := v.validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Rejection{Kind: kind, Reason: ReasonInvalidValue, Detail: err.Error()}
	}
	fe := verrs[0]
	rej := &Rejection{Kind: kind, Field: fe.Field()}
	switch fe.Tag() {
	case "required":
		rej.Reason = ReasonMissingField
	case "ymd":
		rej.Reason = ReasonMalformedDate
		rej.Detail = fmt.Sprintf("%q", fe.Value())
	default:
		rej.Reason = ReasonInvalidValue
		rej.Detail = fmt.Sprintf("%v", fe.Value())
	}
	return rej
}
