// Package joblock serializes job invocations per (partition, job kind).
// The cursor is not transactionally protected, so two overlapping sync runs
// for the same partition could corrupt pagination; the scheduler acquires a
// lock before every tick and skips the tick when the previous run still
// holds it.
package joblock

import (
	"context"
	"fmt"
	"time"
)

// Locker grants a single holder per (offset, kind) at a time.
type Locker interface {
	// Acquire attempts to take the lock. On success it returns ok=true and
	// a release function; on contention ok=false and a nil release. The
	// ttl bounds how long a crashed holder can block the next tick.
	Acquire(ctx context.Context, offset int, kind string, ttl time.Duration) (release func(), ok bool, err error)
}

func lockKey(offset int, kind string) string {
	return fmt.Sprintf("joblock:%s:%d", kind, offset)
}
