package dispatch

import "errors"

// ErrInvalidRequest is returned synchronously when a submission fails
// validation. No job is created in that case.
var ErrInvalidRequest = errors.New("invalid generation request")
