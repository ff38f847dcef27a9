package scorerepo

import "errors"

var (
	// ErrNotFound indicates no score record exists for the requested receipt id.
	ErrNotFound = errors.New("receipt score not found")

	// ErrAlreadyExists indicates a score record already exists with the provided id.
	ErrAlreadyExists = errors.New("receipt score already exists")

	// ErrInvalidID indicates the id is not one the service could have issued.
	ErrInvalidID = errors.New("invalid receipt id")
)
