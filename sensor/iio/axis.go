package iio

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// AxisSample is one decoded three-axis reading in physical units.
type AxisSample = r3.Vector

// Axis identifies a physical axis.
type Axis int

// The physical axes.
const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	return string("xyz"[a])
}

// AxisMap assigns a physical axis to each channel position of a layout.
type AxisMap [3]Axis

// IdentityAxisMap maps channel positions 0, 1, 2 to x, y, z.
var IdentityAxisMap = AxisMap{AxisX, AxisY, AxisZ}

// ParseAxisMap parses a permutation of "xyz", e.g. "xzy" for a sensor whose second channel is the z axis.
func ParseAxisMap(text string) (AxisMap, error) {
	var axisMap AxisMap
	if len(text) != 3 {
		return axisMap, errors.Wrapf(ErrParse, "axis map %q must have three axes", text)
	}
	var seen [3]bool
	for i := 0; i < 3; i++ {
		var axis Axis
		switch text[i] {
		case 'x':
			axis = AxisX
		case 'y':
			axis = AxisY
		case 'z':
			axis = AxisZ
		default:
			return axisMap, errors.Wrapf(ErrParse, "axis map %q: bad axis %q", text, text[i])
		}
		if seen[axis] {
			return axisMap, errors.Wrapf(ErrParse, "axis map %q repeats %s", text, axis)
		}
		seen[axis] = true
		axisMap[i] = axis
	}
	return axisMap, nil
}

func (m AxisMap) String() string {
	return m[0].String() + m[1].String() + m[2].String()
}

// Inversion negates the selected physical axes, indexed x, y, z.
type Inversion [3]bool
