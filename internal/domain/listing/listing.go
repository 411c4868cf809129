// Package listing holds the canonical job and event shapes produced by the
// scrape pipeline and the loosely typed candidates adapters emit.
package listing

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindJob   Kind = "job"
	KindEvent Kind = "event"
)

func (k Kind) Valid() bool {
	return k == KindJob || k == KindEvent
}

// Plural is used in user facing summaries ("Found 3 jobs").
func (k Kind) Plural() string {
	return string(k) + "s"
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindJob, "jobs":
		return KindJob, nil
	case KindEvent, "events":
		return KindEvent, nil
	}
	return "", fmt.Errorf("unknown listing kind %q", s)
}

// Candidate is an unvalidated key/value bag straight out of an adapter.
type Candidate map[string]any

// Record is either a Job or an Event.
type Record interface {
	Kind() Kind
	Key() string
}

// DatePattern is the only shape check applied to event dates.
const DatePattern = `^\d{4}-\d{2}-\d{2}$`
