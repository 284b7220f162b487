package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/iio/sensor/acquisition"
	"go.viam.com/iio/sensor/calibration"
)

// captureOrder lists the selectable sensors in the order they are captured.
var captureOrder = []struct {
	role acquisition.Role
	flag string
}{
	{acquisition.RoleMagn, CaptureFlagMagn},
	{acquisition.RoleAccel, CaptureFlagAccel},
	{acquisition.RoleGyro, CaptureFlagGyro},
}

// CaptureAction records samples of every sensor given an output file, one sensor at a time.
// Interrupting a capture ends it and moves on to the next sensor.
func CaptureAction(c *cli.Context) (err error) {
	logger := newLogger(c)
	defer func() {
		goutils.UncheckedErrorFunc(logger.Sync)
	}()
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}

	var roles []acquisition.Role
	files := map[acquisition.Role]string{}
	for _, sel := range captureOrder {
		if path := c.Path(sel.flag); path != "" {
			roles = append(roles, sel.role)
			files[sel.role] = path
		}
	}
	if len(roles) == 0 {
		return errors.New("nothing to capture; pass --magn, --accel or --gyro with an output file")
	}

	var cal *calibration.Data
	if c.Bool(CaptureFlagApplyCalibration) {
		data := loadCalibration(c, cfg, logger)
		cal = &data
	}
	setups, err := cfg.Setups(cal, roles...)
	if err != nil {
		return err
	}
	acq, err := startAcquisition(c.Context, cfg, setups, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, acq.Teardown())
	}()

	poller, err := acquisition.NewPoller()
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, poller.Close())
	}()

	for i, role := range roles {
		capture := &acquisition.Capture{
			Role:           role,
			Stream:         acq.Sensor(role),
			SampleInterval: setups[i].Config.SampleInterval,
			Poller:         poller,
			Echo:           c.App.Writer,
			Logger:         logger.Sublogger(role.String()),
			MaxLines:       c.Int(CaptureFlagMaxLines),
		}
		if err := captureTo(c, capture, files[role]); err != nil {
			return err
		}
		if c.Context.Err() != nil {
			return nil
		}
	}
	return nil
}

// captureTo runs one capture into path. Only this capture stops on interrupt.
func captureTo(c *cli.Context, capture *acquisition.Capture, path string) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create capture file for %s", capture.Role)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	capture.Out = f

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	fmt.Fprintf(c.App.ErrWriter, "capturing %s into %s, rotate the sensor through every orientation; ctrl-c when done\n",
		capture.Role, path)
	lines, err := capture.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "captured %d %s samples\n", lines, capture.Role)
	return nil
}

// estimate reads a capture file and fits a correction to it.
func estimate(c *cli.Context) (string, *calibration.Estimate, []r3.Vector, error) {
	if c.Args().Len() != 1 {
		return "", nil, nil, errors.New("expected exactly one capture file")
	}
	path := c.Args().First()
	samples, err := calibration.ReadSamplesFile(path)
	if err != nil {
		return "", nil, nil, err
	}
	est, err := calibration.EstimateAxes(samples, calibration.Method(c.String(EstimateFlagMethod)))
	if err != nil {
		return "", nil, nil, errors.Wrapf(err, "estimating from %s", path)
	}
	return path, est, samples, nil
}

// EstimateAction prints the fitted correction of a capture file as calibration file lines, with
// the fit statistics and outliers as comments.
func EstimateAction(c *cli.Context) error {
	sensor := c.String(EstimateFlagSensor)
	switch sensor {
	case "accel", "magn", "gyro":
	default:
		return errors.Errorf("unknown sensor %q", sensor)
	}
	path, est, samples, err := estimate(c)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "# %s: %d samples, method %s\n", filepath.Base(path), len(samples), est.Method)
	for _, r := range []struct {
		name  string
		stats calibration.RadiusStats
	}{
		{"raw", est.Raw},
		{"offset", est.Offset},
		{"scaled", est.Scaled},
	} {
		fmt.Fprintf(w, "# %s radius mean %f stddev %f\n", r.name, r.stats.Mean, r.stats.StdDev)
	}
	for _, o := range est.Outliers {
		fmt.Fprintf(w, "# outlier %d: %s radius %f\n", o.Index, calibration.FormatSample(o.Sample), o.Radius)
	}
	return calibration.WriteAxes(w, sensor, est.Axes)
}

// PlotAction draws the radius plot of a capture file.
func PlotAction(c *cli.Context) error {
	path, est, samples, err := estimate(c)
	if err != nil {
		return err
	}
	out := c.Path(PlotFlagOutput)
	if out == "" {
		out = path + ".png"
	}
	title := c.String(PlotFlagTitle)
	if title == "" {
		title = filepath.Base(path)
	}
	if err := calibration.PlotRadius(samples, est, title, out); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", out)
	return nil
}
