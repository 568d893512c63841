package storage

import "errors"

var (
	// ErrMalformed marks a selection file that cannot be used as is: broken
	// JSON, a schema violation or an invalid identifier.
	ErrMalformed   = errors.New("malformed selection file")
	ErrNilRegistry = errors.New("storage: nil registry")
)
