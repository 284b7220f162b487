// Package calibration holds per-axis sensor corrections: the in-memory form folded into channel
// scale/offset at setup, the key/value file that persists it, and the estimator that derives it
// from captured samples.
package calibration

import (
	"github.com/golang/geo/r3"
)

// Axes is the correction for one three-axis sensor. A corrected reading is raw*Scale + Offset,
// per axis.
type Axes struct {
	Offset r3.Vector
	Scale  r3.Vector
}

// Identity leaves readings untouched.
func Identity() Axes {
	return Axes{Scale: r3.Vector{X: 1, Y: 1, Z: 1}}
}

// Component returns the offset and scale for axis 0 (x), 1 (y) or 2 (z).
func (a Axes) Component(axis int) (offset, scale float64) {
	switch axis {
	case 0:
		return a.Offset.X, a.Scale.X
	case 1:
		return a.Offset.Y, a.Scale.Y
	default:
		return a.Offset.Z, a.Scale.Z
	}
}

// Data is the full calibration set for the accelerometer, magnetometer and gyroscope.
type Data struct {
	Accel Axes
	Magn  Axes
	Gyro  Axes
	// MagnDeclinationMrad is the local magnetic declination in milliradians, added to headings.
	MagnDeclinationMrad float64
}

// Default is the calibration measured on the reference board, used when no file is available.
func Default() Data {
	return Data{
		Accel: Axes{
			Offset: r3.Vector{X: 0.263798, Y: -0.053282, Z: 0.103909},
			Scale:  r3.Vector{X: 0.992941, Y: 0.995991, Z: 0.993166},
		},
		Magn: Axes{
			Offset: r3.Vector{X: -0.017075, Y: -0.114040, Z: 0.337632},
			Scale:  r3.Vector{X: 1.610894, Y: 1.400538, Z: 1.763195},
		},
		Gyro: Identity(),
	}
}

// For returns the axes of "accel", "magn" or "gyro"; anything else gets Identity.
func (d Data) For(sensor string) Axes {
	switch sensor {
	case "accel":
		return d.Accel
	case "magn":
		return d.Magn
	case "gyro":
		return d.Gyro
	default:
		return Identity()
	}
}
