package coerce

import "fmt"

// DateParseError is recoverable: callers drop the field and keep the row.
type DateParseError struct {
	Value  string
	Format string
	Err    error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("could not parse date %q with format %q: %v", e.Value, e.Format, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }
