//go:build !linux

package acquisition

import (
	"context"

	"github.com/pkg/errors"
)

// UnixPoller is only available on linux.
type UnixPoller struct{}

// NewPoller always fails; IIO streams only exist on linux.
func NewPoller() (*UnixPoller, error) {
	return nil, errors.New("polling IIO streams requires linux")
}

// Wait always fails.
func (p *UnixPoller) Wait(ctx context.Context, streams []Stream) ([]bool, error) {
	return nil, errors.New("polling IIO streams requires linux")
}

// Close does nothing.
func (p *UnixPoller) Close() error {
	return nil
}
