package generation

import "errors"

// Common errors returned by Generator implementations.
var (
	// ErrGenerationFailed is returned when the service reported an error
	// for the request (including unparseable source documents).
	ErrGenerationFailed = errors.New("content generation failed")

	// ErrServiceUnavailable is returned when the service could not be
	// reached at all.
	ErrServiceUnavailable = errors.New("content generation service unreachable")

	// ErrInvalidResponse is returned when the service answered but the
	// payload could not be parsed into questions.
	ErrInvalidResponse = errors.New("invalid response from content generation service")

	// ErrContentBlocked is returned when the model refused the request on
	// safety grounds.
	ErrContentBlocked = errors.New("content blocked by model safety filters")

	// ErrInvalidConfig is returned when a generator is constructed with
	// unusable configuration.
	ErrInvalidConfig = errors.New("invalid generator configuration")
)
