package acquisition

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/iio/logging"
	"go.viam.com/iio/sensor/iio"
)

// fakeStream serves one batch of rows per Read. Row r of batch b decodes to {b, r, 0}.
type fakeStream struct {
	name    string
	batches []int
	batch   int
	rows    int
	readErr error
	decoded []int
}

func (s *fakeStream) Name() string { return s.name }
func (s *fakeStream) Fd() int      { return -1 }

func (s *fakeStream) Read() (int, error) {
	if s.readErr != nil {
		return 0, s.readErr
	}
	s.rows = 0
	if s.batch < len(s.batches) {
		s.rows = s.batches[s.batch]
	}
	s.batch++
	return s.rows, nil
}

func (s *fakeStream) Decode(row int) (iio.AxisSample, error) {
	if row >= s.rows {
		return iio.AxisSample{}, errors.Errorf("%s: row %d past %d rows read", s.name, row, s.rows)
	}
	s.decoded = append(s.decoded, row)
	return r3.Vector{X: float64(s.batch - 1), Y: float64(row)}, nil
}

// fakePoller reports a fixed readiness per iteration and cancels once it runs out.
type fakePoller struct {
	ready  [][]bool
	calls  int
	cancel context.CancelFunc
	clk    *clock.Mock
	step   time.Duration
}

func (p *fakePoller) Wait(ctx context.Context, streams []Stream) ([]bool, error) {
	if p.clk != nil {
		p.clk.Add(p.step)
	}
	if p.calls >= len(p.ready) {
		p.cancel()
		return make([]bool, len(streams)), nil
	}
	ready := p.ready[p.calls]
	p.calls++
	return ready, nil
}

type recorder struct {
	ticks []OutputTick
	err   error
}

func (r *recorder) Consume(tick OutputTick) error {
	r.ticks = append(r.ticks, tick)
	return r.err
}

type countingEnv struct {
	calls int
}

func (e *countingEnv) Sample() (int32, float64) {
	e.calls++
	return int32(100000 + e.calls), float64(e.calls)
}

func allReady(n int) [][]bool {
	ready := make([][]bool, n)
	for i := range ready {
		ready[i] = []bool{true, true, true}
	}
	return ready
}

func newTestLoop(t *testing.T, accel, magn, gyro *fakeStream, ready [][]bool) (*Loop, *recorder, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rec := &recorder{}
	return &Loop{
		Accel:    accel,
		Magn:     magn,
		Gyro:     gyro,
		Poller:   &fakePoller{ready: ready, cancel: cancel},
		Consumer: rec,
		Clock:    clock.NewMock(),
		Logger:   logging.NewTestLogger(t),
	}, rec, ctx
}

func TestLoopDividers(t *testing.T) {
	accel := &fakeStream{name: "accel", batches: []int{10}}
	magn := &fakeStream{name: "magn", batches: []int{5}}
	gyro := &fakeStream{name: "gyro", batches: []int{2}}
	loop, rec, ctx := newTestLoop(t, accel, magn, gyro, allReady(1))

	test.That(t, loop.Run(ctx), test.ShouldBeNil)
	test.That(t, len(rec.ticks), test.ShouldEqual, 10)

	for i, tick := range rec.ticks {
		test.That(t, tick.Seq, test.ShouldEqual, uint64(i))
		test.That(t, tick.Accel.Y, test.ShouldEqual, float64(i))
		test.That(t, tick.Magn.Y, test.ShouldEqual, float64(i/2))
		test.That(t, tick.Gyro.Y, test.ShouldEqual, float64(i/5))
	}
	// The gyro changes exactly on ticks 0 and 5.
	var changes []int
	for i := 1; i < len(rec.ticks); i++ {
		if rec.ticks[i].Gyro != rec.ticks[i-1].Gyro {
			changes = append(changes, i)
		}
	}
	test.That(t, changes, test.ShouldResemble, []int{5})
	test.That(t, gyro.decoded, test.ShouldResemble, []int{0, 1})
	test.That(t, magn.decoded, test.ShouldResemble, []int{0, 1, 2, 3, 4})
}

func TestLoopNeverDecodesPastRowsRead(t *testing.T) {
	// 10 ticks over 3 rows gives a divider of 3, which would want a fourth row on tick 9.
	accel := &fakeStream{name: "accel", batches: []int{10}}
	magn := &fakeStream{name: "magn", batches: []int{3}}
	gyro := &fakeStream{name: "gyro", batches: []int{7}}
	loop, rec, ctx := newTestLoop(t, accel, magn, gyro, allReady(1))

	test.That(t, loop.Run(ctx), test.ShouldBeNil)
	test.That(t, len(rec.ticks), test.ShouldEqual, 10)
	test.That(t, magn.decoded, test.ShouldResemble, []int{0, 1, 2})
	test.That(t, gyro.decoded, test.ShouldResemble, []int{0, 1, 2, 3, 4, 5, 6})
	test.That(t, rec.ticks[9].Magn.Y, test.ShouldEqual, 2.0)
}

func TestLoopHoldsSamplesAcrossIterations(t *testing.T) {
	accel := &fakeStream{name: "accel", batches: []int{4, 4}}
	magn := &fakeStream{name: "magn", batches: []int{2}}
	gyro := &fakeStream{name: "gyro", batches: []int{4, 1}}
	ready := [][]bool{{true, true, true}, {true, false, true}}
	loop, rec, ctx := newTestLoop(t, accel, magn, gyro, ready)

	test.That(t, loop.Run(ctx), test.ShouldBeNil)
	test.That(t, len(rec.ticks), test.ShouldEqual, 8)
	// The magnetometer was not ready in the second batch and repeats its last sample.
	for _, tick := range rec.ticks[4:] {
		test.That(t, tick.Magn, test.ShouldResemble, r3.Vector{X: 0, Y: 1})
	}
	// The gyroscope's single row lands on the first tick of the batch and is then held.
	for _, tick := range rec.ticks[4:] {
		test.That(t, tick.Gyro, test.ShouldResemble, r3.Vector{X: 1, Y: 0})
	}
	test.That(t, rec.ticks[7].Accel, test.ShouldResemble, r3.Vector{X: 1, Y: 3})
}

func TestLoopSkipsEmptyIterations(t *testing.T) {
	accel := &fakeStream{name: "accel", batches: []int{0, 2}}
	magn := &fakeStream{name: "magn", batches: []int{0, 1}}
	gyro := &fakeStream{name: "gyro", batches: []int{0, 1}}
	ready := [][]bool{{false, false, false}, {true, true, true}, {true, true, true}}
	loop, rec, ctx := newTestLoop(t, accel, magn, gyro, ready)

	test.That(t, loop.Run(ctx), test.ShouldBeNil)
	test.That(t, len(rec.ticks), test.ShouldEqual, 2)
	test.That(t, rec.ticks[0].Seq, test.ShouldEqual, uint64(0))
}

func TestLoopCancellation(t *testing.T) {
	t.Run("before the first iteration", func(t *testing.T) {
		accel := &fakeStream{name: "accel", batches: []int{1}}
		loop, rec, _ := newTestLoop(t, accel, &fakeStream{}, &fakeStream{}, allReady(5))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		test.That(t, loop.Run(ctx), test.ShouldBeNil)
		test.That(t, len(rec.ticks), test.ShouldEqual, 0)
		test.That(t, accel.batch, test.ShouldEqual, 0)
	})

	t.Run("mid batch", func(t *testing.T) {
		accel := &fakeStream{name: "accel", batches: []int{6, 6}}
		loop, rec, ctx := newTestLoop(t, accel, &fakeStream{name: "magn"}, &fakeStream{name: "gyro"}, allReady(2))
		cancel := loop.Poller.(*fakePoller).cancel
		// Cancelling from inside the consumer still lets the whole batch out.
		loop.Consumer = ConsumerFunc(func(tick OutputTick) error {
			cancel()
			return rec.Consume(tick)
		})
		test.That(t, loop.Run(ctx), test.ShouldBeNil)
		test.That(t, len(rec.ticks), test.ShouldEqual, 6)
	})
}

func TestLoopFatalErrors(t *testing.T) {
	t.Run("read", func(t *testing.T) {
		readErr := errors.New("device gone")
		gyro := &fakeStream{name: "gyro", readErr: readErr}
		loop, _, ctx := newTestLoop(t, &fakeStream{batches: []int{1}}, &fakeStream{batches: []int{1}}, gyro, allReady(3))
		err := loop.Run(ctx)
		test.That(t, errors.Is(err, readErr), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "reading gyro")
	})

	t.Run("consumer", func(t *testing.T) {
		consumeErr := errors.New("stdout closed")
		loop, rec, ctx := newTestLoop(t, &fakeStream{batches: []int{3}}, &fakeStream{}, &fakeStream{}, allReady(3))
		rec.err = consumeErr
		err := loop.Run(ctx)
		test.That(t, errors.Is(err, consumeErr), test.ShouldBeTrue)
		test.That(t, len(rec.ticks), test.ShouldEqual, 1)
	})

	t.Run("poll", func(t *testing.T) {
		loop, _, ctx := newTestLoop(t, &fakeStream{}, &fakeStream{}, &fakeStream{}, nil)
		pollErr := errors.New("EBADF")
		loop.Poller = pollerFunc(func(context.Context, []Stream) ([]bool, error) { return nil, pollErr })
		test.That(t, errors.Is(loop.Run(ctx), pollErr), test.ShouldBeTrue)
	})

	t.Run("missing parts", func(t *testing.T) {
		loop := &Loop{}
		test.That(t, loop.Run(context.Background()), test.ShouldNotBeNil)
	})
}

type pollerFunc func(context.Context, []Stream) ([]bool, error)

func (f pollerFunc) Wait(ctx context.Context, streams []Stream) ([]bool, error) {
	return f(ctx, streams)
}

func TestLoopEnvironmentRefresh(t *testing.T) {
	batches := []int{1, 1, 1, 1, 1}
	loop, rec, ctx := newTestLoop(t, &fakeStream{batches: batches}, &fakeStream{}, &fakeStream{}, allReady(len(batches)))
	env := &countingEnv{}
	mock := clock.NewMock()
	loop.Environment = env
	loop.Clock = mock
	poller := loop.Poller.(*fakePoller)
	poller.clk = mock
	poller.step = 500 * time.Millisecond

	test.That(t, loop.Run(ctx), test.ShouldBeNil)
	test.That(t, len(rec.ticks), test.ShouldEqual, 5)
	// Sampled at start, then after 1s and 2s of mock time.
	pressures := make([]int32, len(rec.ticks))
	for i, tick := range rec.ticks {
		pressures[i] = tick.Pressure
	}
	test.That(t, pressures, test.ShouldResemble, []int32{100001, 100002, 100002, 100003, 100003})
	test.That(t, rec.ticks[4].Temperature, test.ShouldEqual, 3.0)
}

func TestLoopWithoutEnvironment(t *testing.T) {
	loop, rec, ctx := newTestLoop(t, &fakeStream{batches: []int{1}}, &fakeStream{}, &fakeStream{}, allReady(1))
	test.That(t, loop.Run(ctx), test.ShouldBeNil)
	test.That(t, rec.ticks[0].Pressure, test.ShouldEqual, int32(-1))
	test.That(t, rec.ticks[0].Temperature, test.ShouldEqual, -0.1)
}

func TestConsumers(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	test.That(t, Consumers{a, b}.Consume(OutputTick{Seq: 3}), test.ShouldBeNil)
	test.That(t, len(a.ticks), test.ShouldEqual, 1)
	test.That(t, len(b.ticks), test.ShouldEqual, 1)

	a.err = errors.New("full")
	test.That(t, Consumers{a, b}.Consume(OutputTick{Seq: 4}), test.ShouldNotBeNil)
	test.That(t, len(b.ticks), test.ShouldEqual, 1)
}
