package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMissingNaturalKey = errors.New("row has no resolved non-catalog or vendor id")

// AmbiguousMatchError means several store records share a natural key. The row needs
// manual review; nothing is written for it.
type AmbiguousMatchError struct {
	Key       NaturalKey
	RecordIDs []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%d records match key %s: %s", len(e.RecordIDs), e.Key, strings.Join(e.RecordIDs, ", "))
}
