package services

import "time"

// Clock abstracts time.Now so date arithmetic (status derivation, pause
// bookkeeping, change ordering) is testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}
