package acquisition

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/iio/logging"
	"go.viam.com/iio/sensor/calibration"
)

// DefaultMaxCaptureLines bounds a single calibration capture.
const DefaultMaxCaptureLines = 0xFFFF

// minLinePeriod caps a capture at 25 lines per second.
const minLinePeriod = 40 * time.Millisecond

// printDivider returns how many samples to skip between written lines so that a sensor sampled
// every interval produces at most one line per minLinePeriod.
func printDivider(interval time.Duration) int {
	div := 1
	if interval <= 0 {
		return div
	}
	for interval*time.Duration(div) < minLinePeriod {
		div++
	}
	return div
}

// Capture records raw samples of one sensor for offline calibration. Each kept sample becomes an
// `x y z` line in Out, and is echoed to Echo when set.
type Capture struct {
	Role           Role
	Stream         Stream
	SampleInterval time.Duration
	Poller         Poller
	Out            io.Writer
	Echo           io.Writer
	Logger         logging.Logger
	// MaxLines defaults to DefaultMaxCaptureLines.
	MaxLines int
}

// Run captures until MaxLines lines are written or ctx is cancelled, and returns the number of
// lines written. Cancellation is not an error.
func (c *Capture) Run(ctx context.Context) (int, error) {
	if c.Stream == nil || c.Poller == nil || c.Out == nil {
		return 0, errors.Errorf("%s capture is missing its stream, poller or output", c.Role)
	}
	logger := c.Logger
	if logger == nil {
		logger = logging.NewBlankLogger("capture")
	}
	maxLines := c.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultMaxCaptureLines
	}
	div := printDivider(c.SampleInterval)
	logger.Infow("capturing", "sensor", c.Stream.Name(), "divider", div, "max_lines", maxLines)

	streams := []Stream{c.Stream}
	lines := 0
	counter := 0
	for lines < maxLines {
		if ctx.Err() != nil {
			break
		}
		ready, err := c.Poller.Wait(ctx, streams)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return lines, errors.Wrap(err, "waiting for sensor data")
		}
		if len(ready) == 0 || !ready[0] {
			continue
		}
		rows, err := c.Stream.Read()
		if err != nil {
			return lines, errors.Wrapf(err, "reading %s", c.Role)
		}
		for row := 0; row < rows && lines < maxLines; row++ {
			counter++
			if counter < div {
				continue
			}
			counter = 0
			sample, err := c.Stream.Decode(row)
			if err != nil {
				return lines, errors.Wrapf(err, "decoding %s row %d", c.Role, row)
			}
			if err := calibration.WriteSample(c.Out, sample); err != nil {
				return lines, errors.Wrapf(err, "writing %s sample", c.Role)
			}
			if c.Echo != nil {
				if err := calibration.WriteSample(c.Echo, sample); err != nil {
					return lines, errors.Wrapf(err, "echoing %s sample", c.Role)
				}
			}
			lines++
		}
	}
	logger.Infow("capture finished", "sensor", c.Stream.Name(), "lines", lines)
	return lines, nil
}
