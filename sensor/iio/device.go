// Package iio drives Linux Industrial I/O sensors through sysfs: it resolves devices and triggers
// by name, builds the channel layout of a device's scan records, decodes raw samples, and walks a
// device through buffered, triggered streaming.
package iio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/physic"

	"go.viam.com/iio/logging"
	"go.viam.com/iio/sensor/calibration"
)

// State is the lifecycle state of a Sensor.
type State int

// Sensor lifecycle states, in the order Open walks through them.
const (
	StateUnconfigured State = iota
	StateChannelsEnabled
	StateRateSet
	StateDescriptorsBuilt
	StateBufferSized
	StateTriggerBound
	StateBufferEnabled
	StateStreaming
	StateStopped
	StateClosed
)

var stateNames = [...]string{
	"unconfigured", "channels enabled", "rate set", "descriptors built", "buffer sized",
	"trigger bound", "buffer enabled", "streaming", "stopped", "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// DefaultBufferLength is the number of scan records the kernel buffer and the read buffer hold.
const DefaultBufferLength = 128

// SensorConfig describes one physical sensor and how to stream it.
type SensorConfig struct {
	// Name is the IIO device name, e.g. "lsm303dlhc_accel".
	Name              string
	SamplingFrequency physic.Frequency
	// SampleInterval is the period programmed into the trigger.
	SampleInterval time.Duration
	BufferLength   int
	AxisMap        AxisMap
	Invert         Inversion
}

// Sensor is one IIO device streaming three-axis scans.
type Sensor struct {
	cfg    SensorConfig
	topo   Topology
	logger logging.Logger

	state   State
	number  int
	dir     string
	layout  *ChannelLayout
	buf     *ScanBuffer
	trigger *TriggerBinding
	devPath string
	fd      int
}

// NewSensor returns an unconfigured sensor; nothing is touched until Open.
func NewSensor(topo Topology, cfg SensorConfig, logger logging.Logger) *Sensor {
	if cfg.BufferLength == 0 {
		cfg.BufferLength = DefaultBufferLength
	}
	if cfg.AxisMap == (AxisMap{}) {
		cfg.AxisMap = IdentityAxisMap
	}
	return &Sensor{cfg: cfg, topo: topo, logger: logger, number: -1, fd: -1}
}

// Name is the configured IIO device name.
func (s *Sensor) Name() string {
	return s.cfg.Name
}

// Config returns the configuration the sensor was created with.
func (s *Sensor) Config() SensorConfig {
	return s.cfg
}

// State returns the current lifecycle state.
func (s *Sensor) State() State {
	return s.state
}

// Number is the resolved device number, or -1 before resolution.
func (s *Sensor) Number() int {
	return s.number
}

// Layout is the channel layout in use, nil unless the sensor is set up.
func (s *Sensor) Layout() *ChannelLayout {
	return s.layout
}

// Fd is the nonblocking stream descriptor to poll, -1 when not streaming.
func (s *Sensor) Fd() int {
	return s.fd
}

// ScanSize is the size in bytes of one scan record.
func (s *Sensor) ScanSize() int {
	if s.layout == nil {
		return 0
	}
	return int(s.layout.ScanSize)
}

// Open resolves the device and brings it to streaming: scan channels enabled, sampling frequency
// set, layout built (with cal folded in when given), buffers sized, trigger bound and programmed,
// buffer enabled and the character device opened. If any step fails, everything done so far is
// undone and the sensor ends up closed.
func (s *Sensor) Open(ctx context.Context, trigger *TriggerBinding, cal *calibration.Axes) error {
	if s.state != StateUnconfigured {
		return errors.Wrapf(ErrInvalidState, "%s: open while %s", s.cfg.Name, s.state)
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"resolve device", s.resolve},
		{"enable channels", s.enableChannels},
		{"set sampling frequency", s.setSamplingFrequency},
		{"build channel layout", func() error { return s.buildLayout(cal) }},
		{"size buffer", s.sizeBuffer},
		{"bind trigger", func() error { return s.bindTrigger(trigger) }},
		{"enable buffer", s.enableBuffer},
		{"open stream", s.openStream},
	}
	for _, step := range steps {
		err := ctx.Err()
		if err == nil {
			err = step.fn()
		}
		if err != nil {
			err = errors.Wrapf(err, "%s: %s", s.cfg.Name, step.name)
			s.logger.Warnw("setup failed, rolling back", "step", step.name, "state", s.state.String(), "error", err)
			return multierr.Combine(err, s.Close())
		}
	}
	s.logger.Infow("streaming", "device", s.number, "trigger", trigger.Name, "scan_size", s.layout.ScanSize)
	return nil
}

func (s *Sensor) resolve() error {
	n, err := s.topo.ResolveDevice(s.cfg.Name)
	if err != nil {
		return err
	}
	s.number = n
	s.dir = s.topo.DeviceDir(n)
	s.devPath = s.topo.DevicePath(n)
	s.logger.Infow("resolved device", "number", n)
	return nil
}

func (s *Sensor) enableChannels() error {
	scanDir := filepath.Join(s.dir, scanElementsDir)
	entries, err := os.ReadDir(scanDir)
	if err != nil {
		return newIOError("scan", scanDir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, "_x_en") && !strings.HasSuffix(name, "_y_en") && !strings.HasSuffix(name, "_z_en") {
			continue
		}
		if err := WriteInt(filepath.Join(scanDir, name), 1); err != nil {
			return err
		}
	}
	s.state = StateChannelsEnabled
	return nil
}

func (s *Sensor) setSamplingFrequency() error {
	if s.cfg.SamplingFrequency > 0 {
		hz := int(s.cfg.SamplingFrequency / physic.Hertz)
		if err := WriteInt(filepath.Join(s.dir, "sampling_frequency"), hz); err != nil {
			return err
		}
	}
	s.state = StateRateSet
	return nil
}

func (s *Sensor) buildLayout(cal *calibration.Axes) error {
	layout, err := BuildChannels(s.dir)
	if err != nil {
		return err
	}
	if len(layout.Channels) < 3 {
		return errors.Wrapf(ErrNotFound, "%d axis channels enabled", len(layout.Channels))
	}
	// Only the axis channels are decoded; others just occupy their bytes in the record.
	for _, ch := range layout.Channels[:3] {
		if !decodableWidth(ch.ByteWidth) {
			return errors.Wrapf(ErrUnsupportedWidth, "channel %s: %d bytes", ch.Name, ch.ByteWidth)
		}
	}
	if cal != nil {
		layout = layout.Calibrated(s.cfg.AxisMap, *cal)
	}
	for _, ch := range layout.Channels {
		s.logger.Debugw("channel", "name", ch.Name, "index", ch.Index, "location", ch.Location,
			"bytes", ch.ByteWidth, "scale", ch.Scale, "offset", ch.Offset)
	}
	s.layout = layout
	s.state = StateDescriptorsBuilt
	return nil
}

func (s *Sensor) sizeBuffer() error {
	buf, err := NewScanBuffer(int(s.layout.ScanSize), s.cfg.BufferLength)
	if err != nil {
		return err
	}
	s.buf = buf
	if err := WriteInt(filepath.Join(s.dir, "buffer", "length"), s.cfg.BufferLength); err != nil {
		return err
	}
	s.state = StateBufferSized
	return nil
}

func (s *Sensor) bindTrigger(trigger *TriggerBinding) error {
	if trigger == nil {
		return errors.Wrap(ErrNotFound, "no trigger")
	}
	if err := trigger.acquire(s.cfg.Name); err != nil {
		return err
	}
	s.trigger = trigger
	if err := WriteStringAndVerify(filepath.Join(s.dir, "trigger", "current_trigger"), trigger.Name); err != nil {
		return err
	}
	if err := trigger.SetPeriod(s.cfg.SampleInterval); err != nil {
		return err
	}
	s.state = StateTriggerBound
	return nil
}

func (s *Sensor) enableBuffer() error {
	if err := WriteInt(filepath.Join(s.dir, "buffer", "enable"), 1); err != nil {
		return err
	}
	s.state = StateBufferEnabled
	return nil
}

func (s *Sensor) openStream() error {
	fd, err := unix.Open(s.devPath, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return newIOError("open", s.devPath, err)
	}
	s.fd = fd
	s.state = StateStreaming
	return nil
}

func (s *Sensor) disableBuffer() error {
	return WriteInt(filepath.Join(s.dir, "buffer", "enable"), 0)
}

// Stop disables the kernel buffer. Stopping a stopped sensor does nothing.
func (s *Sensor) Stop() error {
	switch s.state {
	case StateStopped:
		return nil
	case StateStreaming:
		if err := s.disableBuffer(); err != nil {
			return errors.Wrapf(err, "%s: stop", s.cfg.Name)
		}
		s.state = StateStopped
		return nil
	default:
		return errors.Wrapf(ErrInvalidState, "%s: stop while %s", s.cfg.Name, s.state)
	}
}

// Close releases everything the sensor holds, in reverse order of acquisition, and keeps going
// past failures. Closing a closed sensor does nothing.
func (s *Sensor) Close() error {
	if s.state == StateClosed {
		return nil
	}
	var err error
	if s.state == StateBufferEnabled || s.state == StateStreaming {
		err = multierr.Append(err, s.disableBuffer())
	}
	if s.trigger != nil {
		if s.dir != "" {
			err = multierr.Append(err, WriteString(filepath.Join(s.dir, "trigger", "current_trigger"), "NULL"))
		}
		s.trigger.release()
		s.trigger = nil
	}
	s.layout = nil
	s.buf = nil
	if s.fd >= 0 {
		if closeErr := unix.Close(s.fd); closeErr != nil {
			err = multierr.Append(err, newIOError("close", s.devPath, closeErr))
		}
		s.fd = -1
	}
	s.state = StateClosed
	if err != nil {
		s.logger.Warnw("errors while closing", "error", err)
	}
	return err
}

// Read pulls whatever scans are waiting into the scan buffer without blocking and returns how
// many whole records arrived. No data is not an error.
func (s *Sensor) Read() (int, error) {
	if s.state != StateStreaming {
		return 0, errors.Wrapf(ErrInvalidState, "%s: read while %s", s.cfg.Name, s.state)
	}
	n, err := unix.Read(s.fd, s.buf.Bytes())
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, newIOError("read", s.devPath, err)
	}
	return n / s.buf.ScanSize(), nil
}

// Record returns raw scan record i of the last read.
func (s *Sensor) Record(i int) ([]byte, error) {
	if s.buf == nil {
		return nil, errors.Wrapf(ErrInvalidState, "%s: no buffer while %s", s.cfg.Name, s.state)
	}
	return s.buf.Record(i)
}

// Decode decodes record i of the last read into an axis sample.
func (s *Sensor) Decode(i int) (AxisSample, error) {
	record, err := s.Record(i)
	if err != nil {
		return AxisSample{}, err
	}
	return DecodeAxes(record, s.layout.Channels, s.cfg.AxisMap, s.cfg.Invert)
}
