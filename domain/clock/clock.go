// Package clock provides the monotonic seconds time base shared by the
// frame timing components. All absolute times in this module are float64
// seconds on one Clock.
package clock

import (
	"math"
	"sync/atomic"
	"time"
)

// Clock reports monotonic time in seconds. Implementations must be safe for
// concurrent use.
type Clock interface {
	Now() float64
}

// Func adapts a plain function to Clock.
type Func func() float64

func (f Func) Now() float64 { return f() }

// Monotonic returns the process monotonic clock. On unix it reads
// CLOCK_MONOTONIC directly; elsewhere it falls back to the runtime's
// monotonic reading.
func Monotonic() Clock { return monotonic{} }

var processStart = time.Now()

func sinceStart() float64 { return time.Since(processStart).Seconds() }

// Manual is a Clock that only moves when told to. The zero value starts at 0.
type Manual struct {
	bits atomic.Uint64
}

// NewManual returns a Manual clock positioned at start seconds.
func NewManual(start float64) *Manual {
	m := &Manual{}
	m.Set(start)
	return m
}

func (m *Manual) Now() float64 { return math.Float64frombits(m.bits.Load()) }

// Set moves the clock to t.
func (m *Manual) Set(t float64) { m.bits.Store(math.Float64bits(t)) }

// Advance moves the clock forward by d seconds and returns the new time.
func (m *Manual) Advance(d float64) float64 {
	for {
		old := m.bits.Load()
		next := math.Float64frombits(old) + d
		if m.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// Seconds converts a duration to clock seconds.
func Seconds(d time.Duration) float64 { return d.Seconds() }

// Duration converts clock seconds to a time.Duration.
func Duration(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
