package acquisition

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// UnixPoller waits on stream descriptors with poll(2). An eventfd is polled alongside them and
// signalled once the context passed to Wait is done, so a wait never outlives cancellation. The
// signal is registered once per context with context.AfterFunc; no goroutine runs until the
// context is done.
type UnixPoller struct {
	efd     int
	watched context.Context
	stop    func() bool
}

// NewPoller returns a poller owning a fresh eventfd. Close releases it.
func NewPoller() (*UnixPoller, error) {
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "creating eventfd")
	}
	return &UnixPoller{efd: efd}, nil
}

// watch arranges for ctx's cancellation to signal the eventfd, replacing any earlier context.
func (p *UnixPoller) watch(ctx context.Context) {
	if p.watched == ctx {
		return
	}
	p.unwatch()
	efd := p.efd
	p.watched = ctx
	p.stop = context.AfterFunc(ctx, func() { wake(efd) })
}

func (p *UnixPoller) unwatch() {
	if p.stop != nil {
		p.stop()
	}
	p.watched, p.stop = nil, nil
	// A signal left over from the previous context must not wake the next one.
	p.drain()
}

func wake(efd int) {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	//nolint:errcheck
	unix.Write(efd, one[:])
}

func (p *UnixPoller) drain() {
	var buf [8]byte
	//nolint:errcheck
	unix.Read(p.efd, buf[:])
}

// Wait blocks until a stream is readable, has hung up or errored, or ctx is done. Streams with a
// negative descriptor are ignored. On cancellation it returns with nothing ready.
func (p *UnixPoller) Wait(ctx context.Context, streams []Stream) ([]bool, error) {
	ready := make([]bool, len(streams))
	if ctx.Err() != nil {
		p.drain()
		return ready, nil
	}
	p.watch(ctx)

	fds := make([]unix.PollFd, len(streams)+1)
	for i, s := range streams {
		fds[i] = unix.PollFd{Fd: int32(s.Fd()), Events: unix.POLLIN}
	}
	wakeIdx := len(streams)
	fds[wakeIdx] = unix.PollFd{Fd: int32(p.efd), Events: unix.POLLIN}

	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EINTR) {
			return nil, errors.Wrap(err, "poll")
		}
	}

	if fds[wakeIdx].Revents&unix.POLLIN != 0 {
		p.drain()
		return ready, nil
	}
	for i := range streams {
		ready[i] = fds[i].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0
	}
	return ready, nil
}

// Close releases the eventfd.
func (p *UnixPoller) Close() error {
	if p.efd < 0 {
		return nil
	}
	p.unwatch()
	err := unix.Close(p.efd)
	p.efd = -1
	return err
}
