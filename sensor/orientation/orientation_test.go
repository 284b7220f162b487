package orientation

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/iio/sensor/acquisition"
)

func TestRollPitch(t *testing.T) {
	roll, pitch := RollPitch(r3.Vector{Z: 9.81})
	test.That(t, roll, test.ShouldAlmostEqual, 0)
	test.That(t, pitch, test.ShouldAlmostEqual, 0)

	roll, pitch = RollPitch(r3.Vector{X: 1, Z: 1})
	test.That(t, roll, test.ShouldAlmostEqual, 0)
	test.That(t, pitch, test.ShouldAlmostEqual, -45)

	roll, pitch = RollPitch(r3.Vector{Y: 1, Z: 1})
	test.That(t, roll, test.ShouldAlmostEqual, 45)
	test.That(t, pitch, test.ShouldAlmostEqual, 0)
}

func TestHeading(t *testing.T) {
	up := r3.Vector{Z: 1}
	test.That(t, Heading(r3.Vector{X: 1, Z: -0.5}, up, Forward), test.ShouldAlmostEqual, 0)
	test.That(t, Heading(r3.Vector{Y: 1, Z: -0.5}, up, Forward), test.ShouldAlmostEqual, 90)
	test.That(t, Heading(r3.Vector{Y: -1}, up, Forward), test.ShouldAlmostEqual, -90)

	// Rolling the board about the forward axis moves both fields together and leaves the
	// heading unchanged.
	magn := r3.Vector{X: 0.4, Y: 0.2, Z: -0.3}
	flat := Heading(magn, up, Forward)
	for _, angle := range []float64{0.3, -0.7, 1.2} {
		test.That(t, Heading(rotateX(magn, angle), rotateX(up, angle), Forward), test.ShouldAlmostEqual, flat)
	}
}

func rotateX(v r3.Vector, angle float64) r3.Vector {
	sin, cos := math.Sincos(angle)
	return r3.Vector{X: v.X, Y: v.Y*cos - v.Z*sin, Z: v.Y*sin + v.Z*cos}
}

func TestCompute(t *testing.T) {
	up := r3.Vector{Z: 1}
	o := Compute(up, r3.Vector{Y: -1}, 0)
	test.That(t, o.Heading, test.ShouldAlmostEqual, 270)

	o = Compute(up, r3.Vector{X: 1}, 1000)
	test.That(t, o.Heading, test.ShouldAlmostEqual, 57.29577951308232)
}

func TestRawPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewRawPrinter(&buf, 8)
	for i := 0; i < 16; i++ {
		tick := acquisition.OutputTick{
			Seq:         uint64(i),
			Accel:       r3.Vector{X: float64(i)},
			Magn:        r3.Vector{Y: 1},
			Gyro:        r3.Vector{Z: -1},
			Pressure:    101325,
			Temperature: 21.5,
		}
		test.That(t, p.Consume(tick), test.ShouldBeNil)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	test.That(t, len(lines), test.ShouldEqual, 2)
	test.That(t, lines[0], test.ShouldEqual,
		"   7.00000    0.00000    0.00000 "+
			"   0.00000    1.00000    0.00000 "+
			"   0.00000    0.00000   -1.00000 "+
			"  101325   21.5")
	test.That(t, lines[1], test.ShouldStartWith, "  15.00000")
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, 6, 0)
	tick := acquisition.OutputTick{Accel: r3.Vector{Y: 1, Z: 1}, Magn: r3.Vector{X: 1}, Pressure: -1, Temperature: -0.1}
	for i := 0; i < 12; i++ {
		test.That(t, p.Consume(tick), test.ShouldBeNil)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	test.That(t, len(lines), test.ShouldEqual, 2)
	fields := strings.Fields(lines[0])
	test.That(t, len(fields), test.ShouldEqual, 5)
	test.That(t, fields[0], test.ShouldEqual, "45.00")
	test.That(t, fields[2], test.ShouldEqual, "0.00")
	test.That(t, fields[3], test.ShouldEqual, "-1")
	test.That(t, fields[4], test.ShouldEqual, "-0.1")
}
