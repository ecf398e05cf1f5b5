package core

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Generator returns a new unique identifier on each call.
type Generator func() string

// UUIDv7 returns a generator of time-ordered UUIDs, falling back to v4 if
// the v7 source fails.
func UUIDv7() Generator {
	return func() string {
		id, err := uuid.NewV7()
		if err != nil {
			return uuid.NewString()
		}
		return id.String()
	}
}

// Prefixed prepends prefix to every id produced by gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string { return prefix + gen() }
}

// Sequence returns a deterministic generator yielding prefix1, prefix2, ...
func Sequence(prefix string) Generator {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s%d", prefix, n.Add(1)) }
}

// DefaultRecordIDs and DefaultReportIDs are used when no generator is injected.
var (
	DefaultRecordIDs = Prefixed("pn_", UUIDv7())
	DefaultReportIDs = Prefixed("rpt_", UUIDv7())
)

// Clock returns the current instant.
type Clock func() time.Time

// SystemClock returns wall time in UTC with millisecond precision, which is
// what survives a round trip through the wire format.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
