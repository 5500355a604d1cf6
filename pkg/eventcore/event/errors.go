package event

import "fmt"

// ValidationError reports a malformed envelope or payload. Field names
// the offending part of the event so producers can diagnose without
// parsing the message text.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event %s: %s", e.Field, e.Reason)
}
