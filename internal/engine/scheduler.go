package engine

import "time"

// Handle is a pending scheduled callback.
type Handle interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped it before it ran.
	Stop() bool
}

// Scheduler runs a callback once after a delay.
// The engine holds at most one Handle at a time.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Handle
}

// TimerScheduler schedules callbacks with time.AfterFunc.
type TimerScheduler struct{}

// AfterFunc implements Scheduler.
func (TimerScheduler) AfterFunc(d time.Duration, f func()) Handle {
	return time.AfterFunc(d, f)
}
