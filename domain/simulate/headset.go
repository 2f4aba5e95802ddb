package simulate

import (
	"math"

	"github.com/soocke/framepace/domain/clock"
	"github.com/soocke/framepace/domain/hmd"
)

// Headset is a head turning about the vertical axis at a constant rate. Its
// IMU delivers samples every SamplePeriod seconds.
type Headset struct {
	clock        clock.Clock
	YawRate      float64 // radians per second
	SamplePeriod float64
}

var _ hmd.HMD = (*Headset)(nil)

// NewHeadset returns a headset turning at yawRate with a 1 kHz IMU.
func NewHeadset(clk clock.Clock, yawRate float64) *Headset {
	if clk == nil {
		clk = clock.Monotonic()
	}
	return &Headset{clock: clk, YawRate: yawRate, SamplePeriod: 0.001}
}

// SensorState predicts the pose at absTime from the newest IMU sample.
func (h *Headset) SensorState(absTime float64) hmd.SensorState {
	sample := h.clock.Now()
	if h.SamplePeriod > 0 {
		sample = math.Floor(sample/h.SamplePeriod) * h.SamplePeriod
	}
	return hmd.SensorState{
		Predicted:           hmd.Posef{Orientation: YawQuat(h.YawRate * absTime)},
		RecordedTimeSeconds: sample,
	}
}

// TimewarpMatrices returns the rotation from the render orientation to the
// orientations predicted for the start and end of the scan-out window.
func (h *Headset) TimewarpMatrices(renderPose hmd.Posef, start, end hmd.SensorState) [2]hmd.Matrix4f {
	return [2]hmd.Matrix4f{
		TimewarpMatrix(renderPose.Orientation, start.Predicted.Orientation),
		TimewarpMatrix(renderPose.Orientation, end.Predicted.Orientation),
	}
}

// Yaw returns the rotation angle about Y of q, in radians.
func Yaw(q hmd.Quatf) float64 {
	return 2 * math.Atan2(float64(q.Y), float64(q.W))
}

// YawQuat is the rotation of angle radians about the Y axis.
func YawQuat(angle float64) hmd.Quatf {
	s, c := math.Sincos(angle / 2)
	return hmd.Quatf{Y: float32(s), W: float32(c)}
}

func conj(q hmd.Quatf) hmd.Quatf { return hmd.Quatf{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W} }

func mul(a, b hmd.Quatf) hmd.Quatf {
	return hmd.Quatf{
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
	}
}

func rotation(q hmd.Quatf) hmd.Matrix4f {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	var m hmd.Matrix4f
	m.M[0] = [4]float32{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y), 0}
	m.M[1] = [4]float32{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x), 0}
	m.M[2] = [4]float32{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y), 0}
	m.M[3] = [4]float32{0, 0, 0, 1}
	return m
}

// TimewarpMatrix is the view correction from an image rendered at
// renderOrientation to predictedOrientation. The off-diagonal terms that
// couple X with Y and Z are negated to move from view space to the
// distortion mesh's texture space.
func TimewarpMatrix(renderOrientation, predictedOrientation hmd.Quatf) hmd.Matrix4f {
	m := rotation(mul(conj(renderOrientation), predictedOrientation))
	m.M[0][1] = -m.M[0][1]
	m.M[0][2] = -m.M[0][2]
	m.M[1][0] = -m.M[1][0]
	m.M[2][0] = -m.M[2][0]
	return m
}
