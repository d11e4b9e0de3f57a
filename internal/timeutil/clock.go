package timeutil

import "time"

// NowFunc is an injectable time source. Components hold one so tests can pin
// the clock to a fixed instant instead of sleeping across window boundaries.
type NowFunc func() time.Time

// Now is the system time source
var Now NowFunc = time.Now

// Fixed returns a NowFunc pinned to the given instant
func Fixed(t time.Time) NowFunc {
	return func() time.Time { return t }
}
