package iio

import (
	"math"

	"github.com/pkg/errors"
)

// ScanBuffer holds up to a fixed number of scan records read from a device in one go. It is sized
// once and never grows.
type ScanBuffer struct {
	data     []byte
	scanSize int
}

// NewScanBuffer allocates room for length records of scanSize bytes each.
func NewScanBuffer(scanSize, length int) (*ScanBuffer, error) {
	if scanSize <= 0 || length <= 0 || length > math.MaxInt32/scanSize {
		return nil, errors.Wrapf(ErrAllocation, "%d records of %d bytes", length, scanSize)
	}
	return &ScanBuffer{data: make([]byte, scanSize*length), scanSize: scanSize}, nil
}

// Bytes is the whole backing buffer, the target of device reads.
func (b *ScanBuffer) Bytes() []byte {
	return b.data
}

// ScanSize is the size of one record.
func (b *ScanBuffer) ScanSize() int {
	return b.scanSize
}

// Len is the number of records the buffer can hold.
func (b *ScanBuffer) Len() int {
	return len(b.data) / b.scanSize
}

// Record returns record i.
func (b *ScanBuffer) Record(i int) ([]byte, error) {
	if i < 0 || i >= b.Len() {
		return nil, errors.Errorf("record %d out of range [0, %d)", i, b.Len())
	}
	return b.data[i*b.scanSize : (i+1)*b.scanSize], nil
}
