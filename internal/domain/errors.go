package domain

import "fmt"

// ValidationError is returned when client-side checks reject data before it is serialized
type ValidationError struct {
	Row    int // 1-based CSV row, 0 when not from a file
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}
