// Package barometer reads pressure and temperature from a BMP085-style sysfs driver.
package barometer

import (
	"go.viam.com/iio/logging"
	"go.viam.com/iio/sensor/iio"
)

const (
	// DefaultPressurePath is the pressure attribute of a bmp085 on i2c bus 1.
	DefaultPressurePath = "/sys/bus/i2c/drivers/bmp085/1-0077/pressure0_input"
	// DefaultTemperaturePath is the temperature attribute of a bmp085 on i2c bus 1.
	DefaultTemperaturePath = "/sys/bus/i2c/drivers/bmp085/1-0077/temp0_input"

	// Unavailable is reported for a reading that could not be taken.
	Unavailable = -1
)

// Barometer samples the two attributes on demand. Failed reads are reported as Unavailable and
// logged once per path until the path reads again.
type Barometer struct {
	pressurePath    string
	temperaturePath string
	logger          logging.Logger
	failing         map[string]bool
}

// New returns a barometer reading the given attribute files.
func New(pressurePath, temperaturePath string, logger logging.Logger) *Barometer {
	return &Barometer{
		pressurePath:    pressurePath,
		temperaturePath: temperaturePath,
		logger:          logger,
		failing:         map[string]bool{},
	}
}

func (b *Barometer) read(path string) int32 {
	val, err := iio.ReadInt32(path)
	if err != nil {
		if !b.failing[path] {
			b.logger.Warnw("barometer read failed", "path", path, "error", err)
			b.failing[path] = true
		}
		return Unavailable
	}
	if b.failing[path] {
		b.logger.Infow("barometer read recovered", "path", path)
		b.failing[path] = false
	}
	return val
}

// Sample returns the pressure in Pa and the temperature in degrees Celsius; the driver reports
// temperature in tenths of a degree.
func (b *Barometer) Sample() (int32, float64) {
	pressure := b.read(b.pressurePath)
	rawTemperature := b.read(b.temperaturePath)
	return pressure, float64(rawTemperature) / 10
}
