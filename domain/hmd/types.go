// Package hmd holds the types exchanged with the collaborators around the
// frame timing core: the device render characteristics, eye and pose
// values, and the pose prediction / time-warp matrix interfaces.
package hmd

// ShutterType describes how the panel refreshes.
type ShutterType int

const (
	ShutterGlobal ShutterType = iota
	ShutterRollingTopToBottom
	ShutterRollingLeftToRight
	ShutterRollingRightToLeft
)

func (s ShutterType) String() string {
	switch s {
	case ShutterGlobal:
		return "global"
	case ShutterRollingTopToBottom:
		return "rolling-top-to-bottom"
	case ShutterRollingLeftToRight:
		return "rolling-left-to-right"
	case ShutterRollingRightToLeft:
		return "rolling-right-to-left"
	default:
		return "unknown"
	}
}

// Rolling reports whether rows are lit one after another.
func (s ShutterType) Rolling() bool { return s != ShutterGlobal }

// ParseShutterType maps the String form back to a ShutterType.
func ParseShutterType(name string) (ShutterType, bool) {
	for _, s := range []ShutterType{ShutterGlobal, ShutterRollingTopToBottom, ShutterRollingLeftToRight, ShutterRollingRightToLeft} {
		if s.String() == name {
			return s, true
		}
	}
	return ShutterGlobal, false
}

// EyeType indexes per-eye arrays.
type EyeType int

const (
	EyeLeft EyeType = iota
	EyeRight
	EyeCount
)

func (e EyeType) String() string {
	switch e {
	case EyeLeft:
		return "left"
	case EyeRight:
		return "right"
	default:
		return "unknown"
	}
}

// Shutter carries the panel timing characteristics, all in seconds.
type Shutter struct {
	Type                        ShutterType
	VsyncToNextVsync            float64 // nominal refresh interval
	VsyncToFirstScanline        float64
	FirstScanlineToLastScanline float64
	NoVsyncToScanout            float64 // 0 selects the built-in estimate
	PixelSettleTime             float64
	PixelPersistence            float64
}

// RenderInfo is the device/render characteristics record supplied at Init.
type RenderInfo struct {
	Shutter Shutter
}

// DK2RenderInfo returns the characteristics of a 75 Hz low-persistence
// panel scanned right to left.
func DK2RenderInfo() RenderInfo {
	return RenderInfo{Shutter: Shutter{
		Type:                        ShutterRollingRightToLeft,
		VsyncToNextVsync:            1.0 / 75.0,
		VsyncToFirstScanline:        0.000052,
		FirstScanlineToLastScanline: 0.016580,
		PixelSettleTime:             0.015,
		PixelPersistence:            0.0018,
	}}
}

// RenderInfoForRefresh returns characteristics for a panel refreshing at hz
// with no measured scan-out, settle or persistence figures.
func RenderInfoForRefresh(hz float64, shutter ShutterType) RenderInfo {
	interval := 0.0
	if hz > 0 {
		interval = 1.0 / hz
	}
	return RenderInfo{Shutter: Shutter{Type: shutter, VsyncToNextVsync: interval}}
}
