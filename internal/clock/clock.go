package clock

import "time"

// Clock abstracts the time source so lifecycle stamps are testable.
// Params: none.
// Returns: current wall-clock time on each Now call.
type Clock interface {
	Now() time.Time
}

// RealClock is the production time source backed by the system clock.
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
