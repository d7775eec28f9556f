package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound rejects a call referencing an unknown identifier.
	ErrNotFound = errors.New("not found")
	// ErrOverlap rejects a schedulable item whose interval intersects an
	// already stored one.
	ErrOverlap = errors.New("schedule overlaps an existing item")
	// ErrMalformed marks structurally invalid input: nil entities, bad
	// values, unparsable records.
	ErrMalformed = errors.New("malformed input")
	// ErrSave marks a failure to persist state after an in-memory commit.
	ErrSave = errors.New("save failed")
	// ErrLoad marks a failure to restore persisted state.
	ErrLoad = errors.New("load failed")
)

// IsRejection reports whether err is a validation rejection: the call was a
// no-op and the caller may continue.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrOverlap)
}

// NotFound builds an ErrNotFound error naming the missing item.
func NotFound(kind Kind, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}
