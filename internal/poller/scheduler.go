package poller

import "time"

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call from running. It reports false when the call already ran or was stopped.
	Stop() bool
}

// Scheduler runs fn once after d on its own goroutine.
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
}

// ClockScheduler schedules on the wall clock with time.AfterFunc.
type ClockScheduler struct{}

func (ClockScheduler) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
