// Package cli implements the iioimu command line: streaming the synchronized sensors, capturing
// and estimating calibrations, inspecting channel layouts and printing the configuration.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/iio/config"
	"go.viam.com/iio/logging"
	"go.viam.com/iio/sensor/calibration"
	"go.viam.com/iio/utils"
)

// Flags.
const (
	FlagConfig = "config"
	FlagDebug  = "debug"

	RunFlagRaw    = "raw"
	RunFlagRecord = "record"

	CaptureFlagMagn             = "magn"
	CaptureFlagAccel            = "accel"
	CaptureFlagGyro             = "gyro"
	CaptureFlagApplyCalibration = "apply-calibration"
	CaptureFlagMaxLines         = "max-lines"

	EstimateFlagMethod = "method"
	EstimateFlagSensor = "sensor"

	PlotFlagOutput = "output"
	PlotFlagTitle  = "title"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter set to errOut.
// Sensor output goes to out, logs to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "iioimu",
		Usage:           "stream and calibrate IIO accelerometer, magnetometer and gyroscope",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    FlagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    FlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "stream synchronized samples and print orientation or raw values",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    RunFlagRaw,
						Aliases: []string{"r"},
						Usage:   "print raw vectors instead of roll, pitch and heading",
					},
					&cli.PathFlag{
						Name:  RunFlagRecord,
						Usage: "also write every tick as a raw line to `FILE`",
					},
				},
				Action: RunAction,
			},
			{
				Name:            "calibrate",
				Usage:           "capture samples and estimate sensor calibrations",
				HideHelpCommand: true,
				Subcommands: []*cli.Command{
					{
						Name:  "capture",
						Usage: "record raw samples of the selected sensors, one after the other; ctrl-c moves on",
						Flags: []cli.Flag{
							&cli.PathFlag{
								Name:    CaptureFlagMagn,
								Aliases: []string{"M"},
								Usage:   "write magnetometer samples to `FILE`",
							},
							&cli.PathFlag{
								Name:    CaptureFlagAccel,
								Aliases: []string{"A"},
								Usage:   "write accelerometer samples to `FILE`",
							},
							&cli.PathFlag{
								Name:    CaptureFlagGyro,
								Aliases: []string{"G"},
								Usage:   "write gyroscope samples to `FILE`",
							},
							&cli.BoolFlag{
								Name:    CaptureFlagApplyCalibration,
								Aliases: []string{"C"},
								Usage:   "apply the current calibration while capturing",
							},
							&cli.IntFlag{
								Name:  CaptureFlagMaxLines,
								Value: 0xFFFF,
								Usage: "stop each capture after this many lines",
							},
						},
						Action: CaptureAction,
					},
					{
						Name:      "estimate",
						Usage:     "fit a calibration to a capture file and print it in calibration file syntax",
						ArgsUsage: "<capture file>",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  EstimateFlagMethod,
								Value: string(calibration.MethodMinMax),
								Usage: "fitting method: minmax or ellipsoid",
							},
							&cli.StringFlag{
								Name:  EstimateFlagSensor,
								Value: "magn",
								Usage: "calibration key prefix: accel, magn or gyro",
							},
						},
						Action: EstimateAction,
					},
					{
						Name:      "plot",
						Usage:     "plot the raw and corrected radius of every sample in a capture file",
						ArgsUsage: "<capture file>",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  EstimateFlagMethod,
								Value: string(calibration.MethodMinMax),
								Usage: "fitting method: minmax or ellipsoid",
							},
							&cli.PathFlag{
								Name:    PlotFlagOutput,
								Aliases: []string{"o"},
								Usage:   "image `FILE`; the extension picks the format (default <capture file>.png)",
							},
							&cli.StringFlag{
								Name:  PlotFlagTitle,
								Usage: "plot title (default the capture file name)",
							},
						},
						Action: PlotAction,
					},
				},
			},
			{
				Name:      "channels",
				Usage:     "print the scan channel layout of an IIO device",
				ArgsUsage: "<device name>",
				Action:    ChannelsAction,
			},
			{
				Name:   "config",
				Usage:  "print the effective configuration as YAML, e.g. to seed a config file",
				Action: ConfigAction,
			},
		},
	}
}

// newLogger logs to the app's error writer so that sensor output on Writer stays clean.
func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger("iioimu")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	logger.SetLevel(logging.INFO)
	if c.Bool(FlagDebug) || utils.DebugEnabled() {
		logger.SetLevel(logging.DEBUG)
	}
	return logger
}

// loadConfig reads --config, or returns the defaults when it is not set.
func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	cfg := config.Default()
	if path := c.Path(FlagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path, logger); err != nil {
			return nil, err
		}
	}
	if !c.Bool(FlagDebug) && !utils.DebugEnabled() {
		logger.SetLevel(cfg.Level())
	}
	return cfg, nil
}

// loadCalibration reads the configured calibration file on top of the built-in calibration,
// falling back to the latter when the file cannot be read.
func loadCalibration(c *cli.Context, cfg *config.Config, logger logging.Logger) calibration.Data {
	path := cfg.CalibrationPath(c.Path(FlagConfig))
	if path == "" {
		return calibration.Default()
	}
	data, err := calibration.ReadFile(path, calibration.Default(), logger)
	if err != nil {
		logger.Warnw("using built-in calibration", "error", err)
		return calibration.Default()
	}
	logger.Infow("read calibration", "path", path)
	return data
}
