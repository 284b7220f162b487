package config

import (
	"testing"
	"time"

	"go.viam.com/test"
	"periph.io/x/conn/v3/physic"

	"go.viam.com/iio/logging"
	"go.viam.com/iio/sensor/acquisition"
	"go.viam.com/iio/sensor/calibration"
	"go.viam.com/iio/sensor/iio"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate(""), test.ShouldBeNil)

	setups, err := cfg.Setups(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(setups), test.ShouldEqual, 3)

	magn := setups[1]
	test.That(t, magn.Role, test.ShouldEqual, acquisition.RoleMagn)
	test.That(t, magn.Config.Name, test.ShouldEqual, "lsm303dlhc_magn")
	test.That(t, magn.Config.SamplingFrequency, test.ShouldEqual, 30*physic.Hertz)
	test.That(t, magn.Config.SampleInterval, test.ShouldEqual, 33*time.Millisecond)
	test.That(t, magn.Config.BufferLength, test.ShouldEqual, iio.DefaultBufferLength)
	test.That(t, magn.Config.AxisMap, test.ShouldResemble, iio.AxisMap{iio.AxisX, iio.AxisZ, iio.AxisY})
	test.That(t, magn.Config.Invert, test.ShouldResemble, iio.Inversion{false, false, true})
	test.That(t, magn.Trigger, test.ShouldEqual, "hrtimertrig1")
	test.That(t, magn.TriggerID, test.ShouldEqual, 1)
	test.That(t, magn.Calibration, test.ShouldBeNil)

	gyro := setups[2]
	test.That(t, gyro.Config.SamplingFrequency, test.ShouldEqual, 95*physic.Hertz)
	test.That(t, gyro.Config.Invert, test.ShouldResemble, iio.Inversion{true, true, true})
}

func TestSetupsWithCalibration(t *testing.T) {
	cal := calibration.Default()
	setups, err := Default().Setups(&cal, acquisition.RoleMagn, acquisition.RoleAccel)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(setups), test.ShouldEqual, 2)
	test.That(t, setups[0].Role, test.ShouldEqual, acquisition.RoleMagn)
	test.That(t, *setups[0].Calibration, test.ShouldResemble, cal.Magn)
	test.That(t, *setups[1].Calibration, test.ShouldResemble, cal.Accel)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name     string
		mutate   func(cfg *Config)
		contains string
	}{
		{"buffer length", func(cfg *Config) { cfg.BufferLength = 0 }, "buffer_length"},
		{"print interval", func(cfg *Config) { cfg.RawPrintEvery = 0 }, "print intervals"},
		{"log level", func(cfg *Config) { cfg.LogLevel = "loud" }, "loud"},
		{"barometer", func(cfg *Config) { cfg.Barometer.PressurePath = "" }, `"pressure_path" is required`},
		{"trigger", func(cfg *Config) { cfg.Sensors.Accel.Trigger = "" }, `"trigger" is required`},
		{"trigger id", func(cfg *Config) { cfg.Sensors.Gyro.TriggerID = -1 }, "trigger_id"},
		{"frequency", func(cfg *Config) { cfg.Sensors.Magn.SamplingFrequency = "fast" }, "sampling_frequency"},
		{"interval", func(cfg *Config) { cfg.Sensors.Magn.SampleInterval = "soon" }, "sample_interval"},
		{"negative interval", func(cfg *Config) { cfg.Sensors.Magn.SampleInterval = "-5ms" }, "out of range"},
		{"axis map", func(cfg *Config) { cfg.Sensors.Magn.AxisMap = "xxy" }, "sensors.magn"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate("")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.contains)
		})
	}

	cfg := Default()
	cfg.Barometer = BarometerConfig{Disabled: true}
	test.That(t, cfg.Validate(""), test.ShouldBeNil)
}

func TestTopologyAndPaths(t *testing.T) {
	t.Setenv("IIO_SYSFS_ROOT", "/tmp/fixture")
	cfg := Default()
	test.That(t, cfg.Topology().Root, test.ShouldEqual, "/tmp/fixture")
	cfg.SysfsRoot = "/srv/sysfs"
	test.That(t, cfg.Topology().Root, test.ShouldEqual, "/srv/sysfs")

	factory := cfg.TriggerFactory()
	test.That(t, factory, test.ShouldNotBeNil)
	test.That(t, factory.Dir, test.ShouldEqual, "/srv/sysfs/iio_hrtimer_trigger")
	cfg.CreateTriggers = false
	test.That(t, cfg.TriggerFactory(), test.ShouldBeNil)

	test.That(t, cfg.CalibrationPath("/etc/iio/iio.yaml"), test.ShouldEqual, calibration.DefaultFile)
	cfg.CalibrationFile = "calib.conf"
	test.That(t, cfg.CalibrationPath("/etc/iio/iio.yaml"), test.ShouldEqual, "/etc/iio/calib.conf")
	test.That(t, cfg.CalibrationPath(""), test.ShouldEqual, "calib.conf")
}

func TestLevel(t *testing.T) {
	t.Setenv("IIO_DEBUG", "")
	cfg := Default()
	test.That(t, cfg.Level(), test.ShouldEqual, logging.INFO)
	cfg.LogLevel = "warn"
	test.That(t, cfg.Level(), test.ShouldEqual, logging.WARN)
	t.Setenv("IIO_DEBUG", "true")
	test.That(t, cfg.Level(), test.ShouldEqual, logging.DEBUG)
}
