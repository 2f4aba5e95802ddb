package model

import (
	"fmt"
	"time"
)

// LockModel tracks how long the latency tracker has been locked onto the
// readback stream (matching) in the current run and in total.
// It is decoupled from the UI; presenters should poll Values() and update views.
// The zero value is ready to use.
type LockModel struct {
	locked    bool
	lockStart time.Time
	current   time.Duration
	total     time.Duration
	relocks   int
}

// NewLockModel returns a pointer to a ready-to-use LockModel.
func NewLockModel() *LockModel { return &LockModel{} }

// OnTick updates the model with the tracker lock state at now.
func (m *LockModel) OnTick(locked bool, now time.Time) {
	if m == nil {
		return
	}
	switch {
	case locked && !m.locked:
		m.locked = true
		m.lockStart = now
		m.current = 0
		m.relocks++
	case locked:
		m.current = now.Sub(m.lockStart)
	case m.locked:
		m.current = now.Sub(m.lockStart)
		m.total += m.current
		m.locked = false
	}
}

// Values returns the current lock duration, the accumulated lock time
// (including the ongoing run) and how many times lock was acquired.
func (m *LockModel) Values() (current, total time.Duration, locks int) {
	if m == nil {
		return 0, 0, 0
	}
	total = m.total
	if m.locked {
		total += m.current
	}
	return m.current, total, m.relocks
}

// GrayHex is the Tk color string of an 8-bit gray level.
func GrayHex(level uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", level, level, level)
}

// Millis formats seconds as milliseconds, or "--" when no value exists yet.
func Millis(seconds float64) string {
	if seconds == 0 {
		return "--"
	}
	return fmt.Sprintf("%.2f ms", seconds*1000)
}

// Clock formats d as mm:ss.
func Clock(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
