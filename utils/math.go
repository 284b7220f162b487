package utils

import (
	"math"
)

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// MradToDeg converts milliradians, the unit magnetic declination is configured in, to degrees.
func MradToDeg(milliradians float64) float64 {
	return RadToDeg(milliradians / 1000)
}

// ModAngDeg wraps an angle in degrees into [0, 360).
func ModAngDeg(ang float64) float64 {
	return math.Mod(math.Mod(ang, 360)+360, 360)
}
