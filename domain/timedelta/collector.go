// Package timedelta smooths noisy scalar time measurements with a small
// running median.
package timedelta

import "slices"

// Capacity is the number of most recent samples a Collector keeps.
const Capacity = 12

// Collector keeps the last Capacity time deltas (seconds) and reports their
// median.
//
// The zero value is ready to use. Not safe for concurrent use.
type Collector struct {
	samples [Capacity]float64
	next    int // slot the next sample lands in
	count   int
}

// AddTimeDelta records seconds, overwriting the oldest sample once the
// collector is full. Negative deltas are invalid timings and are dropped.
func (c *Collector) AddTimeDelta(seconds float64) {
	if seconds < 0 {
		return
	}
	c.samples[c.next] = seconds
	c.next = (c.next + 1) % Capacity
	if c.count < Capacity {
		c.count++
	}
}

// MedianTimeDelta returns the median of the held samples, or 0 when empty.
// For an even count the upper median (sorted[count/2]) is used.
func (c *Collector) MedianTimeDelta() float64 {
	if c.count == 0 {
		return 0
	}
	var sorted [Capacity]float64
	// Before the first wrap the valid samples are the prefix; after it every
	// slot is valid.
	copy(sorted[:], c.samples[:c.count])
	s := sorted[:c.count]
	slices.Sort(s)
	return s[c.count/2]
}

// Count returns how many samples are held.
func (c *Collector) Count() int { return c.count }

// Full reports whether the collector holds Capacity samples.
func (c *Collector) Full() bool { return c.count == Capacity }

// Clear discards all samples.
func (c *Collector) Clear() {
	c.count = 0
	c.next = 0
}
