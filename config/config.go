// Package config defines the structures to configure an IIO inertial acquisition run.
package config

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/physic"

	"go.viam.com/iio/logging"
	"go.viam.com/iio/sensor/acquisition"
	"go.viam.com/iio/sensor/barometer"
	"go.viam.com/iio/sensor/calibration"
	"go.viam.com/iio/sensor/iio"
	"go.viam.com/iio/sensor/orientation"
	"go.viam.com/iio/utils"
)

// A Config describes the sensors of a run and how their output is printed.
type Config struct {
	// SysfsRoot and DevRoot default to utils.SysfsRoot() and utils.DevRoot().
	SysfsRoot string `yaml:"sysfs_root"`
	DevRoot   string `yaml:"dev_root"`

	// CreateTriggers asks the hrtimer trigger factory for every configured trigger before
	// resolving it.
	CreateTriggers bool `yaml:"create_triggers"`

	CalibrationFile string `yaml:"calibration_file"`
	BufferLength    int    `yaml:"buffer_length"`
	LogLevel        string `yaml:"log_level"`

	RawMode               bool `yaml:"raw_mode"`
	RawPrintEvery         int  `yaml:"raw_print_every"`
	OrientationPrintEvery int  `yaml:"orientation_print_every"`

	Barometer BarometerConfig `yaml:"barometer"`
	Sensors   SensorsConfig   `yaml:"sensors"`
}

// BarometerConfig points at the pressure and temperature attributes. Disabled turns the
// barometer off; ticks then carry the unavailable sentinels.
type BarometerConfig struct {
	Disabled        bool   `yaml:"disabled"`
	PressurePath    string `yaml:"pressure_path"`
	TemperaturePath string `yaml:"temperature_path"`
}

// SensorsConfig holds one SensorConfig per role.
type SensorsConfig struct {
	Accel SensorConfig `yaml:"accel"`
	Magn  SensorConfig `yaml:"magn"`
	Gyro  SensorConfig `yaml:"gyro"`
}

// SensorConfig describes one IIO sensor.
type SensorConfig struct {
	Name      string `yaml:"name"`
	Trigger   string `yaml:"trigger"`
	TriggerID int    `yaml:"trigger_id"`
	// SamplingFrequency is a frequency such as "25Hz".
	SamplingFrequency string `yaml:"sampling_frequency"`
	// SampleInterval is the trigger period, e.g. "40ms".
	SampleInterval string `yaml:"sample_interval"`
	// AxisMap names the axis of each scan channel in index order, e.g. "xzy".
	AxisMap string  `yaml:"axis_map"`
	Invert  [3]bool `yaml:"invert"`
}

// Default returns the configuration of the reference board: an LSM303DLHC accelerometer and
// magnetometer and an L3GD20 gyroscope, each on its own hrtimer trigger.
func Default() *Config {
	return &Config{
		CreateTriggers:        true,
		CalibrationFile:       calibration.DefaultFile,
		BufferLength:          iio.DefaultBufferLength,
		LogLevel:              "info",
		RawPrintEvery:         orientation.DefaultRawPrintEvery,
		OrientationPrintEvery: orientation.DefaultOrientationPrintEvery,
		Barometer: BarometerConfig{
			PressurePath:    barometer.DefaultPressurePath,
			TemperaturePath: barometer.DefaultTemperaturePath,
		},
		Sensors: SensorsConfig{
			Accel: SensorConfig{
				Name:              "lsm303dlhc_accel",
				Trigger:           "hrtimertrig0",
				TriggerID:         0,
				SamplingFrequency: "25Hz",
				SampleInterval:    "40ms",
				AxisMap:           "xyz",
				Invert:            [3]bool{false, false, true},
			},
			Magn: SensorConfig{
				Name:              "lsm303dlhc_magn",
				Trigger:           "hrtimertrig1",
				TriggerID:         1,
				SamplingFrequency: "30Hz",
				SampleInterval:    "33ms",
				AxisMap:           "xzy",
				Invert:            [3]bool{false, false, true},
			},
			Gyro: SensorConfig{
				Name:              "l3gd20",
				Trigger:           "hrtimertrig2",
				TriggerID:         2,
				SamplingFrequency: "95Hz",
				SampleInterval:    "11ms",
				AxisMap:           "xyz",
				Invert:            [3]bool{true, true, true},
			},
		},
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.BufferLength <= 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("buffer_length must be positive, got %d", c.BufferLength))
	}
	if c.RawPrintEvery <= 0 || c.OrientationPrintEvery <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("print intervals must be positive"))
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
	}
	if !c.Barometer.Disabled {
		if c.Barometer.PressurePath == "" {
			return goutils.NewConfigValidationFieldRequiredError(joinPath(path, "barometer"), "pressure_path")
		}
		if c.Barometer.TemperaturePath == "" {
			return goutils.NewConfigValidationFieldRequiredError(joinPath(path, "barometer"), "temperature_path")
		}
	}
	for _, role := range acquisition.Roles {
		if err := c.Sensors.For(role).Validate(joinPath(path, "sensors."+role.String())); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

// For returns the sensor playing role.
func (s *SensorsConfig) For(role acquisition.Role) *SensorConfig {
	switch role {
	case acquisition.RoleMagn:
		return &s.Magn
	case acquisition.RoleGyro:
		return &s.Gyro
	default:
		return &s.Accel
	}
}

// Validate ensures the sensor is fully described.
func (sc *SensorConfig) Validate(path string) error {
	if sc.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if sc.Trigger == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "trigger")
	}
	if sc.TriggerID < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("trigger_id must not be negative, got %d", sc.TriggerID))
	}
	if _, err := sc.IIOConfig(iio.DefaultBufferLength); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// IIOConfig converts the sensor's text fields into an iio.SensorConfig.
func (sc *SensorConfig) IIOConfig(bufferLength int) (iio.SensorConfig, error) {
	var freq physic.Frequency
	if sc.SamplingFrequency != "" {
		if err := freq.Set(sc.SamplingFrequency); err != nil {
			return iio.SensorConfig{}, errors.Wrapf(err, "sampling_frequency %q", sc.SamplingFrequency)
		}
	}
	interval, err := cast.ToDurationE(sc.SampleInterval)
	if err != nil {
		return iio.SensorConfig{}, errors.Wrapf(err, "sample_interval %q", sc.SampleInterval)
	}
	if interval <= 0 || interval > time.Minute {
		return iio.SensorConfig{}, errors.Errorf("sample_interval %s out of range", interval)
	}
	axisMap := iio.IdentityAxisMap
	if sc.AxisMap != "" {
		if axisMap, err = iio.ParseAxisMap(sc.AxisMap); err != nil {
			return iio.SensorConfig{}, err
		}
	}
	return iio.SensorConfig{
		Name:              sc.Name,
		SamplingFrequency: freq,
		SampleInterval:    interval,
		BufferLength:      bufferLength,
		AxisMap:           axisMap,
		Invert:            iio.Inversion(sc.Invert),
	}, nil
}

// Topology returns where to find the IIO devices.
func (c *Config) Topology() iio.Topology {
	topo := iio.DefaultTopology()
	if c.SysfsRoot != "" {
		topo.Root = c.SysfsRoot
	}
	if c.DevRoot != "" {
		topo.DevRoot = c.DevRoot
	}
	return topo
}

// TriggerFactory returns the factory to create triggers with, or nil when triggers are expected
// to exist already.
func (c *Config) TriggerFactory() *iio.TriggerFactory {
	if !c.CreateTriggers {
		return nil
	}
	factory := iio.NewHRTimerFactory(c.Topology())
	return &factory
}

// Setups turns the given roles into sensor setups. When cal is not nil, each sensor's calibration
// is folded into its layout.
func (c *Config) Setups(cal *calibration.Data, roles ...acquisition.Role) ([]acquisition.SensorSetup, error) {
	if len(roles) == 0 {
		roles = acquisition.Roles
	}
	setups := make([]acquisition.SensorSetup, 0, len(roles))
	for _, role := range roles {
		sc := c.Sensors.For(role)
		iioCfg, err := sc.IIOConfig(c.BufferLength)
		if err != nil {
			return nil, errors.Wrapf(err, "sensors.%s", role)
		}
		setup := acquisition.SensorSetup{
			Role:      role,
			Config:    iioCfg,
			Trigger:   sc.Trigger,
			TriggerID: sc.TriggerID,
		}
		if cal != nil {
			axes := cal.For(role.String())
			setup.Calibration = &axes
		}
		setups = append(setups, setup)
	}
	return setups, nil
}

// CalibrationPath resolves the calibration file relative to the config file's directory.
func (c *Config) CalibrationPath(configPath string) string {
	if c.CalibrationFile == "" || filepath.IsAbs(c.CalibrationFile) || configPath == "" {
		return c.CalibrationFile
	}
	return filepath.Join(filepath.Dir(configPath), c.CalibrationFile)
}

// Level returns the configured log level, or INFO (DEBUG when IIO_DEBUG is set).
func (c *Config) Level() logging.Level {
	if utils.DebugEnabled() {
		return logging.DEBUG
	}
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}
