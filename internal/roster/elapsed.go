package roster

import (
	"fmt"
	"time"
)

// Elapsed is a connection timer counted in observed ticks. It is not derived
// from wall-clock time.
type Elapsed struct {
	Hours   int
	Minutes int
	Seconds int
}

// Next returns e advanced by one second. Seconds carry into minutes and
// minutes into hours at 60; hours are unbounded.
func (e Elapsed) Next() Elapsed {
	e.Seconds++
	if e.Seconds >= 60 {
		e.Seconds = 0
		e.Minutes++
	}
	if e.Minutes >= 60 {
		e.Minutes = 0
		e.Hours++
	}
	return e
}

// Duration converts the timer to a time.Duration.
func (e Elapsed) Duration() time.Duration {
	return time.Duration(e.Hours)*time.Hour +
		time.Duration(e.Minutes)*time.Minute +
		time.Duration(e.Seconds)*time.Second
}

// String renders the timer as "1h 2m 3s".
func (e Elapsed) String() string {
	return fmt.Sprintf("%dh %dm %ds", e.Hours, e.Minutes, e.Seconds)
}
