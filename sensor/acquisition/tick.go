// Package acquisition merges the three IIO sensors into one synchronized stream of output ticks,
// and runs single-sensor calibration captures.
package acquisition

import (
	"context"

	"go.viam.com/iio/sensor/iio"
)

// Role is the part a stream plays in an output tick.
type Role int

// The three roles, in the order streams are polled and decoded.
const (
	RoleAccel Role = iota
	RoleMagn
	RoleGyro
)

// Roles lists every role in loop order.
var Roles = []Role{RoleAccel, RoleMagn, RoleGyro}

func (r Role) String() string {
	switch r {
	case RoleAccel:
		return "accel"
	case RoleMagn:
		return "magn"
	case RoleGyro:
		return "gyro"
	default:
		return "unknown"
	}
}

// OutputTick is one synchronized record. Every tick carries a value for every sensor: a sensor
// that has no fresh row for this tick repeats its previous sample.
type OutputTick struct {
	Seq         uint64
	Accel       iio.AxisSample
	Magn        iio.AxisSample
	Gyro        iio.AxisSample
	Pressure    int32
	Temperature float64
}

// Stream is a source of decoded three-axis rows; *iio.Sensor is one.
type Stream interface {
	Name() string
	Fd() int
	// Read fetches pending rows without blocking and reports how many arrived.
	Read() (int, error)
	Decode(row int) (iio.AxisSample, error)
}

// Poller blocks until at least one stream has data or ctx is done, and reports which streams
// are readable.
type Poller interface {
	Wait(ctx context.Context, streams []Stream) ([]bool, error)
}

// EnvironmentSource supplies the slow-changing barometric pressure and temperature.
type EnvironmentSource interface {
	Sample() (pressure int32, temperature float64)
}

// Consumer receives every output tick, in order.
type Consumer interface {
	Consume(tick OutputTick) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(tick OutputTick) error

// Consume calls f.
func (f ConsumerFunc) Consume(tick OutputTick) error {
	return f(tick)
}

// Consumers fans each tick out to several consumers, stopping at the first error.
type Consumers []Consumer

// Consume forwards the tick to every consumer.
func (cs Consumers) Consume(tick OutputTick) error {
	for _, c := range cs {
		if err := c.Consume(tick); err != nil {
			return err
		}
	}
	return nil
}
