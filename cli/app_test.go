package cli

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/iio/config"
	"go.viam.com/iio/logging"
	"go.viam.com/iio/sensor/calibration"
	"go.viam.com/iio/sensor/iio"
	"go.viam.com/iio/testutils"
)

type testBoard struct {
	root    string
	devRoot string
	dir     string
	config  string
}

// newTestBoard lays out the reference board and a config file pointing at it, with identity
// calibration and a barometer reading 101325 Pa and 21.5 C.
func newTestBoard(t *testing.T, rawMode bool) testBoard {
	t.Helper()
	board := testBoard{root: t.TempDir(), devRoot: t.TempDir(), dir: t.TempDir()}
	testutils.MakeReferenceBoard(t, board.root, board.devRoot, false)

	var cal bytes.Buffer
	identity := calibration.Data{Accel: calibration.Identity(), Magn: calibration.Identity(), Gyro: calibration.Identity()}
	test.That(t, calibration.Write(&cal, identity), test.ShouldBeNil)
	testutils.WriteFile(t, filepath.Join(board.dir, "calib.conf"), cal.String())
	testutils.WriteFile(t, filepath.Join(board.dir, "pressure"), "101325\n")
	testutils.WriteFile(t, filepath.Join(board.dir, "temperature"), "215\n")

	board.config = filepath.Join(board.dir, "iio.yaml")
	testutils.WriteFile(t, board.config, fmt.Sprintf(`
sysfs_root: %s
dev_root: %s
create_triggers: false
calibration_file: calib.conf
raw_mode: %t
barometer:
  pressure_path: %s
  temperature_path: %s
`, board.root, board.devRoot, rawMode, filepath.Join(board.dir, "pressure"), filepath.Join(board.dir, "temperature")))
	return board
}

func runApp(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut)
	err := app.RunContext(ctx, append([]string{"iioimu"}, args...))
	t.Log(errOut.String())
	return out.String(), errOut.String(), err
}

func TestRunCommand(t *testing.T) {
	board := newTestBoard(t, true)
	var accel [][3]int64
	for i := int64(0); i < 16; i++ {
		accel = append(accel, [3]int64{i, 2 * i, 3 * i})
	}
	testutils.WriteScans(t, board.devRoot, 0, accel...)
	testutils.WriteScans(t, board.devRoot, 1, [3]int64{1, 2, 3})
	testutils.WriteScans(t, board.devRoot, 2, [3]int64{4, 5, 6})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	recordPath := filepath.Join(board.dir, "record.txt")
	out, _, err := runApp(t, ctx, "--config", board.config, "run", "--record", recordPath)
	test.That(t, err, test.ShouldBeNil)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	test.That(t, len(lines), test.ShouldEqual, 2)

	// The record holds every tick; stdout only every eighth.
	record, err := os.ReadFile(recordPath)
	test.That(t, err, test.ShouldBeNil)
	recorded := strings.Split(strings.TrimSpace(string(record)), "\n")
	test.That(t, len(recorded), test.ShouldEqual, 16)
	test.That(t, recorded[7], test.ShouldEqual, lines[0])
	test.That(t, recorded[15], test.ShouldEqual, lines[1])

	fields := strings.Fields(lines[0])
	test.That(t, len(fields), test.ShouldEqual, 11)
	// Tick 7 carries accel row 7 with z inverted; the other sensors hold their only row.
	test.That(t, fields[:3], test.ShouldResemble, []string{"7.00000", "14.00000", "-21.00000"})
	test.That(t, fields[3:6], test.ShouldResemble, []string{"1.00000", "3.00000", "-2.00000"})
	test.That(t, fields[6:9], test.ShouldResemble, []string{"-4.00000", "-5.00000", "-6.00000"})
	test.That(t, fields[9:], test.ShouldResemble, []string{"101325", "21.5"})

	// Sensors are released on the way out.
	enabled, err := iio.ReadString(filepath.Join(board.root, "iio:device0", "buffer", "enable"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, enabled, test.ShouldEqual, "0")
}

func TestRunCommandSetupFailure(t *testing.T) {
	board := newTestBoard(t, false)
	testutils.WriteFile(t, filepath.Join(board.root, "iio:device2", "name"), "l3g4200d\n")
	_, _, err := runApp(t, context.Background(), "--config", board.config, "run")
	test.That(t, errors.Is(err, iio.ErrNotFound), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "sensor setup failed")
}

func TestCaptureCommand(t *testing.T) {
	board := newTestBoard(t, false)
	var magn [][3]int64
	for i := int64(0); i < 8; i++ {
		magn = append(magn, [3]int64{i, 2 * i, 3 * i})
	}
	testutils.WriteScans(t, board.devRoot, 1, magn...)
	captureFile := filepath.Join(board.dir, "magn.txt")

	out, errOut, err := runApp(t, context.Background(),
		"--config", board.config, "calibrate", "capture", "--magn", captureFile, "--max-lines", "3")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut, test.ShouldContainSubstring, "captured 3 magn samples")

	samples, err := calibration.ReadSamplesFile(captureFile)
	test.That(t, err, test.ShouldBeNil)
	// A 33ms magnetometer keeps every second row; axes map xzy with z inverted.
	test.That(t, samples, test.ShouldResemble, []r3.Vector{{X: 1, Y: 3, Z: -2}, {X: 3, Y: 9, Z: -6}, {X: 5, Y: 15, Z: -10}})

	echoed, err := calibration.ReadSamples(strings.NewReader(out))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, echoed, test.ShouldResemble, samples)

	_, _, err = runApp(t, context.Background(), "--config", board.config, "calibrate", "capture")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "nothing to capture")
}

// writeSphere writes samples of a sphere of the given radii centered on center.
func writeSphere(t *testing.T, path string, center, radii r3.Vector) []r3.Vector {
	t.Helper()
	var samples []r3.Vector
	var b strings.Builder
	for i := 0; i < 12; i++ {
		theta := math.Pi * (float64(i) + 0.5) / 12
		for j := 0; j < 24; j++ {
			phi := 2 * math.Pi * float64(j) / 24
			s := r3.Vector{
				X: center.X + radii.X*math.Sin(theta)*math.Cos(phi),
				Y: center.Y + radii.Y*math.Sin(theta)*math.Sin(phi),
				Z: center.Z + radii.Z*math.Cos(theta),
			}
			samples = append(samples, s)
			test.That(t, calibration.WriteSample(&b, s), test.ShouldBeNil)
		}
	}
	testutils.WriteFile(t, path, b.String())
	return samples
}

func TestEstimateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "magn.txt")
	samples := writeSphere(t, path, r3.Vector{X: 0.2, Y: -0.1, Z: 0.3}, r3.Vector{X: 0.6, Y: 0.7, Z: 0.5})

	for _, method := range []calibration.Method{calibration.MethodMinMax, calibration.MethodEllipsoid} {
		t.Run(string(method), func(t *testing.T) {
			out, _, err := runApp(t, context.Background(), "calibrate", "estimate", "--method", string(method), path)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, out, test.ShouldContainSubstring, "# magn.txt: 288 samples, method "+string(method))
			test.That(t, out, test.ShouldContainSubstring, "# scaled radius mean")

			expected, err := calibration.EstimateAxes(samples, method)
			test.That(t, err, test.ShouldBeNil)
			parsed, err := calibration.Read(strings.NewReader(out), calibration.Data{}, logging.NewTestLogger(t))
			test.That(t, err, test.ShouldBeNil)
			test.That(t, parsed.Magn.Offset.Sub(expected.Axes.Offset).Norm(), test.ShouldBeLessThan, 1e-5)
			test.That(t, parsed.Magn.Scale.Sub(expected.Axes.Scale).Norm(), test.ShouldBeLessThan, 1e-5)
		})
	}

	_, _, err := runApp(t, context.Background(), "calibrate", "estimate", "--sensor", "baro", path)
	test.That(t, err, test.ShouldNotBeNil)
	_, _, err = runApp(t, context.Background(), "calibrate", "estimate", "--method", "magic", path)
	test.That(t, err, test.ShouldNotBeNil)
	_, _, err = runApp(t, context.Background(), "calibrate", "estimate")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlotCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accel.txt")
	writeSphere(t, path, r3.Vector{X: 0.05}, r3.Vector{X: 1, Y: 1, Z: 1.1})

	out, _, err := runApp(t, context.Background(), "calibrate", "plot", path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, path+".png")
	info, err := os.Stat(path + ".png")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	svg := filepath.Join(dir, "radius.svg")
	_, _, err = runApp(t, context.Background(), "calibrate", "plot", "--method", "ellipsoid", "-o", svg, path)
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(svg)
	test.That(t, err, test.ShouldBeNil)
}

func TestChannelsCommand(t *testing.T) {
	root := t.TempDir()
	channels := testutils.AxisChannels("in_magn")
	for i := range channels {
		channels[i].Enabled = true
	}
	testutils.MakeFakeDevice(t, root, 4, "lsm303dlhc_magn", channels)
	testutils.WriteFile(t, filepath.Join(root, "iio:device4", "in_magn_x_scale"), "0.0011\n")
	t.Setenv("IIO_SYSFS_ROOT", root)

	out, _, err := runApp(t, context.Background(), "channels", "lsm303dlhc_magn")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "iio:device4")
	test.That(t, out, test.ShouldContainSubstring, "scan size 6 bytes")
	test.That(t, out, test.ShouldContainSubstring, "in_magn_z")
	test.That(t, out, test.ShouldContainSubstring, "0.0011")

	_, _, err = runApp(t, context.Background(), "channels", "lsm303dlhc_accel")
	test.That(t, errors.Is(err, iio.ErrNotFound), test.ShouldBeTrue)
}

func TestConfigCommand(t *testing.T) {
	out, _, err := runApp(t, context.Background(), "config")
	test.That(t, err, test.ShouldBeNil)
	cfg, err := config.FromReader("stdout", strings.NewReader(out), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, config.Default())

	board := newTestBoard(t, true)
	out, _, err = runApp(t, context.Background(), "--config", board.config, "config")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "sysfs_root: "+board.root)
	cfg, err = config.FromReader("stdout", strings.NewReader(out), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.RawMode, test.ShouldBeTrue)
	test.That(t, cfg.CreateTriggers, test.ShouldBeFalse)
	test.That(t, cfg.Sensors, test.ShouldResemble, config.Default().Sensors)
}
