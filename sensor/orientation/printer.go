package orientation

import (
	"fmt"
	"io"

	"go.viam.com/iio/sensor/acquisition"
	"go.viam.com/iio/sensor/calibration"
)

const (
	// DefaultRawPrintEvery is how many ticks pass between raw lines.
	DefaultRawPrintEvery = 8
	// DefaultOrientationPrintEvery is how many ticks pass between orientation lines.
	DefaultOrientationPrintEvery = 6
)

// divider lets through one call in every n.
type divider struct {
	every   int
	counter int
}

func (d *divider) due() bool {
	d.counter++
	every := d.every
	if every < 1 {
		every = 1
	}
	if d.counter < every {
		return false
	}
	d.counter = 0
	return true
}

func environment(tick acquisition.OutputTick) string {
	return fmt.Sprintf("%8d %6.1f", tick.Pressure, tick.Temperature)
}

// RawPrinter writes the three samples, pressure and temperature of every Nth tick.
type RawPrinter struct {
	w   io.Writer
	div divider
}

// NewRawPrinter returns a printer writing one line every `every` ticks.
func NewRawPrinter(w io.Writer, every int) *RawPrinter {
	return &RawPrinter{w: w, div: divider{every: every}}
}

// Consume implements acquisition.Consumer.
func (p *RawPrinter) Consume(tick acquisition.OutputTick) error {
	if !p.div.due() {
		return nil
	}
	_, err := fmt.Fprintf(p.w, "%s%s%s%s\n",
		calibration.FormatSample(tick.Accel), calibration.FormatSample(tick.Magn), calibration.FormatSample(tick.Gyro),
		environment(tick))
	return err
}

// Printer writes roll, pitch, heading, pressure and temperature of every Nth tick.
type Printer struct {
	w               io.Writer
	div             divider
	declinationMrad float64
}

// NewPrinter returns an orientation printer writing one line every `every` ticks.
func NewPrinter(w io.Writer, every int, declinationMrad float64) *Printer {
	return &Printer{w: w, div: divider{every: every}, declinationMrad: declinationMrad}
}

// Consume implements acquisition.Consumer.
func (p *Printer) Consume(tick acquisition.OutputTick) error {
	if !p.div.due() {
		return nil
	}
	o := Compute(tick.Accel, tick.Magn, p.declinationMrad)
	_, err := fmt.Fprintf(p.w, "% 7.2f % 7.2f % 7.2f %s\n", o.Roll, o.Pitch, o.Heading, environment(tick))
	return err
}
