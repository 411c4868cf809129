package domain

import "errors"

var (
	ErrTransport          = errors.New("transport error")
	ErrParse              = errors.New("parse error")
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrStorage            = errors.New("storage error")
	ErrStorageUnavailable = errors.New("database connection not available")
	ErrBusy               = errors.New("adapter run already in progress")
)
