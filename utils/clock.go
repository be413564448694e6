package utils

import "time"

// Clock abstracts wall-clock reads so calendar arithmetic (yesterday, month
// bounds, deadlines) stays testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the system clock.
func RealClock() Clock { return realClock{} }
