package kernel

import "time"

// Clock supplies the current time. Services take one so that expiry can be tested.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the wall clock in UTC
var SystemClock Clock = systemClock{}

// FixedClock always answers the same instant, tests move it with Advance
type FixedClock struct {
	T time.Time
}

func (f *FixedClock) Now() time.Time { return f.T }

// Advance moves the clock forward
func (f *FixedClock) Advance(d time.Duration) { f.T = f.T.Add(d) }
