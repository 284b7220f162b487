package iio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ScanType is the decoded form of a channel's `_type` attribute, e.g. "le:s12/16>>4".
type ScanType struct {
	BigEndian   bool
	Signed      bool
	BitsUsed    uint32
	StorageBits uint32
	Shift       uint32
}

// ByteWidth is the number of bytes the channel occupies in a scan record.
func (st ScanType) ByteWidth() uint32 {
	return st.StorageBits / 8
}

// Mask selects the valid bits once the raw value has been shifted down.
func (st ScanType) Mask() uint64 {
	if st.BitsUsed >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << st.BitsUsed) - 1
}

func (st ScanType) String() string {
	endian, sign := 'l', 'u'
	if st.BigEndian {
		endian = 'b'
	}
	if st.Signed {
		sign = 's'
	}
	return fmt.Sprintf("%ce:%c%d/%d>>%d", endian, sign, st.BitsUsed, st.StorageBits, st.Shift)
}

// ParseScanType parses `<b|l>e:<s|u><bits_used>/<storage_bits>>><shift>`. The repeat suffix
// newer kernels append for multi-element channels is rejected. Any whole number of storage bytes
// parses; whether a width can be decoded is left to Decode.
func ParseScanType(text string) (ScanType, error) {
	var st ScanType
	text = strings.TrimSpace(text)
	fail := func(format string, args ...interface{}) (ScanType, error) {
		return ScanType{}, errors.Wrapf(ErrParse, "scan type %q: %s", text, fmt.Sprintf(format, args...))
	}

	if len(text) < 4 || text[1] != 'e' || text[2] != ':' {
		return fail("expected <b|l>e:<s|u>")
	}
	switch text[0] {
	case 'b':
		st.BigEndian = true
	case 'l':
	default:
		return fail("bad endianness %q", text[0])
	}
	switch text[3] {
	case 's':
		st.Signed = true
	case 'u':
	default:
		return fail("bad signedness %q", text[3])
	}

	bitsText, rest, found := strings.Cut(text[4:], "/")
	if !found {
		return fail("missing '/'")
	}
	storageText, shiftText, found := strings.Cut(rest, ">>")
	if !found {
		return fail("missing '>>'")
	}

	fields := []struct {
		name string
		text string
		dst  *uint32
	}{
		{"bits used", bitsText, &st.BitsUsed},
		{"storage bits", storageText, &st.StorageBits},
		{"shift", shiftText, &st.Shift},
	}
	for _, field := range fields {
		val, err := strconv.ParseUint(field.text, 10, 32)
		if err != nil {
			return fail("bad %s %q", field.name, field.text)
		}
		*field.dst = uint32(val)
	}

	switch {
	case st.StorageBits == 0 || st.StorageBits%8 != 0:
		return fail("storage bits must be a positive multiple of 8")
	case st.BitsUsed == 0 || st.BitsUsed > st.StorageBits:
		return fail("bits used must be between 1 and %d", st.StorageBits)
	case uint64(st.Shift)+uint64(st.BitsUsed) > uint64(st.StorageBits):
		return fail("shift %d leaves fewer than %d bits", st.Shift, st.BitsUsed)
	}
	return st, nil
}
