package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/iio/config"
	"go.viam.com/iio/logging"
	"go.viam.com/iio/sensor/acquisition"
	"go.viam.com/iio/sensor/barometer"
	"go.viam.com/iio/sensor/orientation"
	"go.viam.com/iio/utils"
)

// RunAction streams the three sensors until interrupted, printing orientation lines or, with
// --raw, raw vectors. With --record every tick is also written to a file as a raw line.
func RunAction(c *cli.Context) (err error) {
	logger := newLogger(c)
	defer func() {
		goutils.UncheckedErrorFunc(logger.Sync)
	}()
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	cal := loadCalibration(c, cfg, logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	setups, err := cfg.Setups(&cal)
	if err != nil {
		return err
	}
	acq, err := startAcquisition(ctx, cfg, setups, logger)
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

	var consumer acquisition.Consumer
	if cfg.RawMode || c.Bool(RunFlagRaw) {
		consumer = orientation.NewRawPrinter(c.App.Writer, cfg.RawPrintEvery)
	} else {
		consumer = orientation.NewPrinter(c.App.Writer, cfg.OrientationPrintEvery, cal.MagnDeclinationMrad)
	}
	if path := c.Path(RunFlagRecord); path != "" {
		//nolint:gosec
		record, createErr := os.Create(path)
		if createErr != nil {
			return errors.Wrap(createErr, "cannot create record file")
		}
		defer func() {
			err = multierr.Combine(err, record.Close())
		}()
		consumer = acquisition.Consumers{consumer, orientation.NewRawPrinter(record, 1)}
	}

	loop := &acquisition.Loop{
		Accel:    acq.Sensor(acquisition.RoleAccel),
		Magn:     acq.Sensor(acquisition.RoleMagn),
		Gyro:     acq.Sensor(acquisition.RoleGyro),
		Poller:   poller,
		Consumer: consumer,
		Logger:   logger.Sublogger("loop"),
	}
	if !cfg.Barometer.Disabled {
		loop.Environment = barometer.New(cfg.Barometer.PressurePath, cfg.Barometer.TemperaturePath,
			logger.Sublogger("barometer"))
	}
	logger.Info("streaming, press ctrl-c to stop")
	return loop.Run(ctx)
}

// startAcquisition brings up the given sensors within the setup timeout.
func startAcquisition(
	ctx context.Context,
	cfg *config.Config,
	setups []acquisition.SensorSetup,
	logger logging.Logger,
) (*acquisition.Acquisition, error) {
	setupCtx, cancel := context.WithTimeout(ctx, utils.GetSetupTimeout(logger))
	defer cancel()
	acq := acquisition.New(cfg.Topology(), cfg.TriggerFactory(), setups, logger)
	if err := acq.Setup(setupCtx); err != nil {
		return nil, errors.Wrap(err, "sensor setup failed")
	}
	return acq, nil
}
