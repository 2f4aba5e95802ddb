package hmd

// Vector3f is a position in meters.
type Vector3f struct{ X, Y, Z float32 }

// Quatf is a unit orientation quaternion.
type Quatf struct{ X, Y, Z, W float32 }

// IdentityQuat is the no-rotation orientation.
var IdentityQuat = Quatf{W: 1}

// Posef is a rigid head pose.
type Posef struct {
	Orientation Quatf
	Position    Vector3f
}

// Matrix4f is a row-major 4x4 transform.
type Matrix4f struct{ M [4][4]float32 }

// SensorState is what the tracking system reports for a requested absolute
// time: the pose predicted for that time and the timestamp of the IMU sample
// the prediction started from.
type SensorState struct {
	Predicted           Posef
	RecordedTimeSeconds float64
}

// PosePredictor integrates head motion forward to an absolute time.
type PosePredictor interface {
	SensorState(absTimeSeconds float64) SensorState
}

// TimewarpMatrixBuilder turns the pose an eye was rendered with and the poses
// predicted for the start and end of its scan-out window into the pair of
// time-warp transforms.
type TimewarpMatrixBuilder interface {
	TimewarpMatrices(renderPose Posef, start, end SensorState) [2]Matrix4f
}

// HMD is a headset able to both predict and build time-warp transforms.
type HMD interface {
	PosePredictor
	TimewarpMatrixBuilder
}
