package latency

// State is the latency tracker's protocol state.
type State int

const (
	// StateDisabled: no tagging, baseline color only.
	StateDisabled State = iota
	// StateWaitingForZero: baseline color painted until the tester reports a
	// full batch of baseline readbacks.
	StateWaitingForZero
	// StateMatching: frames are tagged in rotation and matched to readbacks.
	StateMatching
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateWaitingForZero:
		return "waiting-for-zero"
	case StateMatching:
		return "matching"
	default:
		return "unknown"
	}
}

// LatencyTimings is the diagnostic latency triple, in seconds. All zero until
// the first readback is matched.
type LatencyTimings struct {
	Render   float64 // render IMU sample to scan-out
	Timewarp float64 // time-warp IMU sample to scan-out, 0 without time-warp
	Screen   float64 // end of frame to scan-out
}

// Array returns the triple in {render, timewarp, screen} order.
func (l LatencyTimings) Array() [3]float32 {
	return [3]float32{float32(l.Render), float32(l.Timewarp), float32(l.Screen)}
}

// TrackerStats summarises tracker activity for instrumentation.
type TrackerStats struct {
	State             State
	Attempts          uint64 // tagged frames saved
	Matches           uint64 // tagged frames matched to a readback
	Resyncs           uint64 // returns to StateWaitingForZero after a stall
	FrameIndex        int    // frames saved in the current matching run
	Samples           int    // screen delay samples held
	LatencyRecordTime float64
}
