// Package orientation derives roll, pitch and a tilt compensated heading from accelerometer and
// magnetometer samples, and prints acquisition ticks.
package orientation

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/iio/utils"
)

// Orientation is an attitude in degrees. Heading is measured clockwise from magnetic north plus
// declination, in [0, 360).
type Orientation struct {
	Roll    float64
	Pitch   float64
	Heading float64
}

// Forward is the body axis whose heading is reported.
var Forward = r3.Vector{X: 1}

// RollPitch computes roll and pitch from the gravity vector measured by the accelerometer.
func RollPitch(accel r3.Vector) (roll, pitch float64) {
	roll = utils.RadToDeg(math.Atan(accel.Y / math.Sqrt(accel.X*accel.X+accel.Z*accel.Z)))
	pitch = utils.RadToDeg(math.Atan(-accel.X / math.Sqrt(accel.Y*accel.Y+accel.Z*accel.Z)))
	return roll, pitch
}

// Heading returns the angle in degrees, in (-180, 180], between from projected onto the
// horizontal plane and magnetic north. East is magn x accel and north is accel x east, so the
// result does not depend on tilt.
func Heading(magn, accel, from r3.Vector) float64 {
	east := magn.Cross(accel).Normalize()
	north := accel.Cross(east).Normalize()
	return utils.RadToDeg(math.Atan2(east.Dot(from), north.Dot(from)))
}

// Compute derives the full orientation. Declination is in milliradians.
func Compute(accel, magn r3.Vector, declinationMrad float64) Orientation {
	roll, pitch := RollPitch(accel)
	heading := Heading(magn, accel, Forward) + utils.MradToDeg(declinationMrad)
	return Orientation{Roll: roll, Pitch: pitch, Heading: utils.ModAngDeg(heading)}
}
