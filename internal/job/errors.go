package job

import "errors"

// Common errors returned by registry implementations.
var (
	// ErrJobNotFound is returned when the requested job ID is unknown or
	// has been removed by the retention sweep.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a transition would move a job
	// backward or mutate a terminal record. It guards against races and
	// programming errors; it should never surface to HTTP clients.
	ErrInvalidTransition = errors.New("invalid job state transition")
)
