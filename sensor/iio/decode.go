package iio

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

func byteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func decodableWidth(width uint32) bool {
	return width == 2 || width == 4 || width == 8
}

// Decode converts the raw bytes of one channel, starting at raw[0], to physical units:
// (value + Offset) * Scale. A signed 64 bit channel with unit scale and no offset is a timestamp
// and is returned as the raw integer.
func Decode(raw []byte, ch ChannelDescriptor) (float64, error) {
	width := ch.ByteWidth
	if !decodableWidth(width) {
		return 0, errors.Wrapf(ErrUnsupportedWidth, "channel %s: %d bytes", ch.Name, width)
	}
	if uint32(len(raw)) < width {
		return 0, errors.Wrapf(ErrUnsupportedWidth, "channel %s: need %d bytes, have %d", ch.Name, width, len(raw))
	}

	order := byteOrder(ch.BigEndian)
	var input uint64
	switch width {
	case 2:
		input = uint64(order.Uint16(raw))
	case 4:
		input = uint64(order.Uint32(raw))
	default:
		input = order.Uint64(raw)
	}
	input = (input >> ch.Shift) & ch.Mask

	if !ch.Signed {
		return (float64(input) + ch.Offset) * ch.Scale, nil
	}

	unused := width*8 - ch.BitsUsed
	var val int64
	switch width {
	case 2:
		val = int64(int16(uint16(input)<<unused) >> unused)
	case 4:
		val = int64(int32(uint32(input)<<unused) >> unused)
	default:
		val = int64(input<<unused) >> unused
		if ch.Scale == 1 && ch.Offset == 0 {
			return float64(val), nil
		}
	}
	return (float64(val) + ch.Offset) * ch.Scale, nil
}

// DecodeAxes decodes the first three channels of a scan record into a sample, placing each
// channel on the axis the map assigns it and negating inverted axes.
func DecodeAxes(record []byte, channels []ChannelDescriptor, axisMap AxisMap, invert Inversion) (AxisSample, error) {
	var sample AxisSample
	if len(channels) < 3 {
		return sample, errors.Wrapf(ErrInvalidState, "need 3 axis channels, have %d", len(channels))
	}
	for i := 0; i < 3; i++ {
		ch := channels[i]
		end := ch.Location + ch.ByteWidth
		if end > uint32(len(record)) {
			return sample, errors.Wrapf(ErrUnsupportedWidth, "channel %s ends at %d past record of %d bytes",
				ch.Name, end, len(record))
		}
		val, err := Decode(record[ch.Location:end], ch)
		if err != nil {
			return sample, err
		}
		axis := axisMap[i]
		if invert[axis] {
			val = -val
		}
		switch axis {
		case AxisX:
			sample.X = val
		case AxisY:
			sample.Y = val
		case AxisZ:
			sample.Z = val
		}
	}
	return sample, nil
}
