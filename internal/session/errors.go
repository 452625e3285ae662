package session

import "errors"

var (
	// ErrNoData is returned when an operation needs loaded warehouse data
	ErrNoData = errors.New("no data loaded")
	// ErrContentNotFound is returned when a content id is not in the session
	ErrContentNotFound = errors.New("content not found")
)
