package activity

import "errors"

var (
	// ErrConfiguration means the job cannot run with the current settings.
	// It is never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrDuplicateResource means the host already has a resource of that name.
	ErrDuplicateResource = errors.New("resource already exists")
)
