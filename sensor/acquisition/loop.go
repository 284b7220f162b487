package acquisition

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/iio/logging"
	"go.viam.com/iio/sensor/iio"
)

// DefaultRefreshInterval is how often pressure and temperature are re-read.
const DefaultRefreshInterval = time.Second

// Loop polls the accelerometer, magnetometer and gyroscope together and emits one tick per row of
// the fastest stream. Slower streams are spread evenly over those ticks: a stream that delivered
// rows rows when the fastest delivered numRows advances every numRows/rows ticks, and holds its
// last sample in between.
type Loop struct {
	Accel Stream
	Magn  Stream
	Gyro  Stream

	Poller Poller
	// Environment may be nil, in which case ticks carry the same sentinels as a missing barometer.
	Environment EnvironmentSource
	Consumer    Consumer
	Clock       clock.Clock
	Logger      logging.Logger
	// RefreshInterval defaults to DefaultRefreshInterval.
	RefreshInterval time.Duration
}

type streamState struct {
	role    Role
	stream  Stream
	rows    int
	divider int
	counter int
	next    int
	sample  iio.AxisSample
}

// decodeTick advances the stream's counter for one tick and, when it reaches the divider,
// decodes the next unread row into the held sample.
func (st *streamState) decodeTick() error {
	st.counter++
	if st.counter < st.divider {
		return nil
	}
	st.counter = 0
	if st.next >= st.rows {
		return nil
	}
	sample, err := st.stream.Decode(st.next)
	if err != nil {
		return errors.Wrapf(err, "decoding %s row %d", st.role, st.next)
	}
	st.sample = sample
	st.next++
	return nil
}

type noEnvironment struct{}

func (noEnvironment) Sample() (int32, float64) {
	return -1, -0.1
}

func (l *Loop) validate() error {
	for _, s := range []struct {
		name string
		ok   bool
	}{
		{"accel stream", l.Accel != nil},
		{"magn stream", l.Magn != nil},
		{"gyro stream", l.Gyro != nil},
		{"poller", l.Poller != nil},
		{"consumer", l.Consumer != nil},
	} {
		if !s.ok {
			return errors.Errorf("acquisition loop has no %s", s.name)
		}
	}
	return nil
}

// Run loops until ctx is cancelled, returning nil, or until reading, decoding or consuming fails,
// returning that error. Cancellation is only observed between iterations, so a batch that has
// been read is always fully emitted.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.validate(); err != nil {
		return err
	}
	clk := l.Clock
	if clk == nil {
		clk = clock.New()
	}
	env := l.Environment
	if env == nil {
		env = noEnvironment{}
	}
	logger := l.Logger
	if logger == nil {
		logger = logging.NewBlankLogger("acquisition")
	}
	refresh := l.RefreshInterval
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}

	states := []*streamState{
		{role: RoleAccel, stream: l.Accel, divider: 1},
		{role: RoleMagn, stream: l.Magn, divider: 1},
		{role: RoleGyro, stream: l.Gyro, divider: 1},
	}
	streams := make([]Stream, len(states))
	for i, st := range states {
		streams[i] = st.stream
	}

	pressure, temperature := env.Sample()
	lastRefresh := clk.Now()
	var seq uint64

	for {
		if ctx.Err() != nil {
			return nil
		}

		ready, err := l.Poller.Wait(ctx, streams)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "waiting for sensor data")
		}

		numRows := 0
		for i, st := range states {
			st.rows = 0
			st.next = 0
			if i >= len(ready) || !ready[i] {
				continue
			}
			rows, err := st.stream.Read()
			if err != nil {
				return errors.Wrapf(err, "reading %s", st.role)
			}
			st.rows = rows
			if rows > numRows {
				numRows = rows
			}
		}
		if numRows == 0 {
			continue
		}

		for _, st := range states {
			if st.rows > 0 {
				st.divider = numRows / st.rows
				if st.divider < 1 {
					st.divider = 1
				}
			}
			// Primed so that the first tick of the batch decodes.
			st.counter = st.divider - 1
		}
		logger.Debugw("batch", "rows", numRows,
			"accel", states[0].rows, "magn", states[1].rows, "gyro", states[2].rows)

		if now := clk.Now(); now.Sub(lastRefresh) >= refresh {
			lastRefresh = now
			pressure, temperature = env.Sample()
		}

		for tick := 0; tick < numRows; tick++ {
			for _, st := range states {
				if err := st.decodeTick(); err != nil {
					return err
				}
			}
			out := OutputTick{
				Seq:         seq,
				Accel:       states[0].sample,
				Magn:        states[1].sample,
				Gyro:        states[2].sample,
				Pressure:    pressure,
				Temperature: temperature,
			}
			seq++
			if err := l.Consumer.Consume(out); err != nil {
				return errors.Wrap(err, "consuming tick")
			}
		}
	}
}
