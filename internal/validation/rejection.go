package validation

import (
	"fmt"

	"feedsync/internal/domain"
	"feedsync/internal/domain/listing"
)

type Reason string

const (
	ReasonMissingField  Reason = "missing_field"
	ReasonWrongType     Reason = "wrong_type"
	ReasonMalformedDate Reason = "malformed_date"
	ReasonInvalidValue  Reason = "invalid_value"
)

// Rejection explains why a candidate was not admitted. It matches
// domain.ErrValidation under errors.Is.
type Rejection struct {
	Kind   listing.Kind
	Field  string
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r == nil {
		return ""
	}
	msg := fmt.Sprintf("%s rejected: field=%s reason=%s", r.Kind, r.Field, r.Reason)
	if r.Detail != "" {
		msg += " detail=" + r.Detail
	}
	return msg
}

func (r *Rejection) Unwrap() error {
	return domain.ErrValidation
}
