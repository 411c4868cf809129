package validation

import (
	"fmt"
	"strings"
	"time"

	"feedsync/internal/domain/listing"
)

// reader pulls typed values out of a candidate and remembers the first
// type mismatch it sees.
type reader struct {
	c    listing.Candidate
	kind listing.Kind
	err  *Rejection
}

func (r *reader) fail(field string, reason Reason, detail string) {
	if r.err != nil {
		return
	}
	r.err = &Rejection{Kind: r.kind, Field: field, Reason: reason, Detail: detail}
}

func (r *reader) str(key string) string {
	v, ok := r.c[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	default:
		r.fail(key, ReasonWrongType, fmt.Sprintf("expected string, got %T", v))
		return ""
	}
}

func (r *reader) boolean(key string) bool {
	v, ok := r.c[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return false
		}
		switch s {
		case "true", "1":
			return true
		case "false", "0":
			return false
		}
		r.fail(key, ReasonWrongType, fmt.Sprintf("expected bool, got %q", s))
		return false
	default:
		r.fail(key, ReasonWrongType, fmt.Sprintf("expected bool, got %T", v))
		return false
	}
}

func (r *reader) list(key string) []string {
	v, ok := r.c[key]
	if !ok || v == nil {
		return []string{}
	}
	var parts []string
	switch t := v.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []string:
		parts = t
	case []any:
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				r.fail(key, ReasonWrongType, fmt.Sprintf("expected string list item, got %T", it))
				return []string{}
			}
			parts = append(parts, s)
		}
	default:
		r.fail(key, ReasonWrongType, fmt.Sprintf("expected string or list, got %T", v))
		return []string{}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// timestamp reports ok=false for absent or unparsable values so the caller
// can fall back to its clock. Only a non-string, non-time value is an error.
func (r *reader) timestamp(key string) (time.Time, bool) {
	v, ok := r.c[key]
	if !ok || v == nil {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		return time.Time{}, false
	default:
		r.fail(key, ReasonWrongType, fmt.Sprintf("expected timestamp, got %T", v))
		return time.Time{}, false
	}
}

var jobTypeAliases = map[string]listing.JobType{
	"FULL_TIME":  listing.JobTypeFullTime,
	"FULLTIME":   listing.JobTypeFullTime,
	"PART_TIME":  listing.JobTypePartTime,
	"PARTTIME":   listing.JobTypePartTime,
	"CONTRACTOR": listing.JobTypeContractor,
	"CONTRACT":   listing.JobTypeContractor,
	"TEMPORARY":  listing.JobTypeTemporary,
	"TEMP":       listing.JobTypeTemporary,
	"INTERN":     listing.JobTypeIntern,
	"INTERNSHIP": listing.JobTypeIntern,
	"VOLUNTEER":  listing.JobTypeVolunteer,
	"PER_DIEM":   listing.JobTypePerDiem,
	"OTHER":      listing.JobTypeOther,
}

func normalizeJobType(s string) listing.JobType {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return listing.JobTypeFullTime
	}
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	if jt, ok := jobTypeAliases[s]; ok {
		return jt
	}
	return listing.JobTypeOther
}
