package objstore

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces record ids.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids, so id order follows
// creation order and works as a sort tiebreaker.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Clock supplies timestamps for audit fields and relative durations.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC, truncated to the millisecond
// precision both backends store.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
