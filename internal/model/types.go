package model

import "fmt"

// Kind tags which sensor record an Envelope carries.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInertial
	KindRanging
)

func (k Kind) String() string {
	switch k {
	case KindInertial:
		return "inertial"
	case KindRanging:
		return "ranging"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// InertialReading is one accelerometer/gyroscope sample (MPU6050 style).
type InertialReading struct {
	Source    string  `json:"source"`
	Frequency int32   `json:"frequency"`
	AccX      float64 `json:"acc_x"`
	AccY      float64 `json:"acc_y"`
	AccZ      float64 `json:"acc_z"`
	RotX      float64 `json:"rot_x"`
	RotY      float64 `json:"rot_y"`
	RotZ      float64 `json:"rot_z"`
	Timestamp *uint64 `json:"timestamp"`
}

// RangingReading is one distance measurement (UWB style).
type RangingReading struct {
	Source      string  `json:"source"`
	Destination *string `json:"destination,omitempty"`
	Range       float64 `json:"range"`
	Timestamp   *uint64 `json:"timestamp"`
}
