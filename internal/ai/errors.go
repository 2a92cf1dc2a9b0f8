package ai

import (
	"errors"
	"fmt"
)

// OverloadError marks a transient upstream overload signal (HTTP 503/429 or
// the Gemini UNAVAILABLE/RESOURCE_EXHAUSTED statuses). It is the only
// failure class the extraction retry loop is allowed to retry.
type OverloadError struct {
	StatusCode int
	Message    string
}

func (e *OverloadError) Error() string {
	return fmt.Sprintf("model service overloaded (status %d): %s", e.StatusCode, e.Message)
}

// IsOverload reports whether err carries an OverloadError anywhere in its
// chain.
func IsOverload(err error) bool {
	var overload *OverloadError
	return errors.As(err, &overload)
}
