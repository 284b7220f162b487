package calibration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/multierr"

	"go.viam.com/iio/logging"
)

// DefaultFile is where the calibration of the reference board is installed.
const DefaultFile = "/etc/default/rpi-stereo-cam-stream-calib.conf"

// maxLineLength matches the fixed line buffer older tools write the file with; longer lines are
// skipped rather than truncated.
const maxLineLength = 127

const declinationKey = "magn.declination_mrad"

func (d *Data) field(key string) *float64 {
	if key == declinationKey {
		return &d.MagnDeclinationMrad
	}
	sensor, component, ok := strings.Cut(key, ".")
	if !ok {
		return nil
	}
	var axes *Axes
	switch sensor {
	case "accel":
		axes = &d.Accel
	case "magn":
		axes = &d.Magn
	case "gyro":
		axes = &d.Gyro
	default:
		return nil
	}
	axis, kind, ok := strings.Cut(component, "_")
	if !ok {
		return nil
	}
	var vec *r3.Vector
	switch kind {
	case "offset":
		vec = &axes.Offset
	case "scale":
		vec = &axes.Scale
	default:
		return nil
	}
	switch axis {
	case "x":
		return &vec.X
	case "y":
		return &vec.Y
	case "z":
		return &vec.Z
	default:
		return nil
	}
}

// Read applies the `key = value` lines of r on top of base. Lines starting with '#' are comments.
// Unknown keys and unparsable values are logged and skipped.
func Read(r io.Reader, base Data, logger logging.Logger) (Data, error) {
	data := base
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if len(line) > maxLineLength {
			logger.Warnw("skipping overlong calibration line", "line", lineNum)
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		v, err := cast.ToFloat64E(strings.TrimSpace(value))
		if err != nil {
			logger.Warnw("bad calibration value", "key", key, "line", lineNum, "error", err)
			continue
		}
		dst := data.field(key)
		if dst == nil {
			logger.Warnw("unrecognized calibration key", "key", key, "line", lineNum)
			continue
		}
		*dst = v
	}
	if err := scanner.Err(); err != nil {
		return base, errors.Wrap(err, "reading calibration")
	}
	return data, nil
}

// ReadFile reads a calibration file on top of base.
func ReadFile(path string, base Data, logger logging.Logger) (_ Data, err error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return base, errors.Wrapf(err, "cannot open calibration file %s", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return Read(f, base, logger)
}

// Write renders data in the calibration file syntax Read accepts.
func Write(w io.Writer, data Data) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s = %f\n", declinationKey, data.MagnDeclinationMrad)
	for _, sensor := range []struct {
		name string
		axes Axes
	}{
		{"magn", data.Magn},
		{"accel", data.Accel},
		{"gyro", data.Gyro},
	} {
		writeAxes(&b, sensor.name, sensor.axes)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteAxes renders one sensor's correction, e.g. for an estimate of a single sensor.
func WriteAxes(w io.Writer, sensor string, axes Axes) error {
	var b strings.Builder
	writeAxes(&b, sensor, axes)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeAxes(b *strings.Builder, sensor string, axes Axes) {
	for _, kind := range []struct {
		name string
		vec  r3.Vector
	}{
		{"offset", axes.Offset},
		{"scale", axes.Scale},
	} {
		fmt.Fprintf(b, "%s.x_%s = %f\n", sensor, kind.name, kind.vec.X)
		fmt.Fprintf(b, "%s.y_%s = %f\n", sensor, kind.name, kind.vec.Y)
		fmt.Fprintf(b, "%s.z_%s = %f\n", sensor, kind.name, kind.vec.Z)
	}
}
