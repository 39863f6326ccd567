package reminders

import "time"

// Timer is a cancelable pending callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall time and timer arming so tests can drive the scheduler.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
