package profile

import "fmt"

// ValidationError is returned for malformed preference input. It is always
// surfaced to the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid preference %s: %s", e.Field, e.Reason)
}
