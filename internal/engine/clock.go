package engine

import "time"

// Clock supplies the current time in unix seconds.
//
// Due-order detection and execution timestamps read the clock once per call
// so that every order in one CheckUpkeep or PerformUpkeep sees the same
// instant.
type Clock interface {
	Now() int64
}

// SystemClock reads wall-clock time.
type SystemClock struct{}

// Now returns time.Now() in unix seconds.
func (SystemClock) Now() int64 {
	return time.Now().Unix()
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() int64

// Now calls f.
func (f ClockFunc) Now() int64 {
	return f()
}
