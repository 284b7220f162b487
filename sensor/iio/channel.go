package iio

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/iio/sensor/calibration"
)

const scanElementsDir = "scan_elements"

// ChannelDescriptor describes how one enabled channel is laid out in a scan record and how its raw
// value converts to physical units.
type ChannelDescriptor struct {
	Name        string
	GenericName string
	Scale       float64
	Offset      float64
	Index       uint32
	ByteWidth   uint32
	BitsUsed    uint32
	Shift       uint32
	Mask        uint64
	BigEndian   bool
	Signed      bool
	// Location is the byte offset of the channel within a scan record.
	Location uint32
}

func (ch *ChannelDescriptor) setScanType(st ScanType) {
	ch.ByteWidth = st.ByteWidth()
	ch.BitsUsed = st.BitsUsed
	ch.Shift = st.Shift
	ch.Mask = st.Mask()
	ch.BigEndian = st.BigEndian
	ch.Signed = st.Signed
}

// ChannelLayout is the ordered set of enabled channels of a device and the resulting record size.
type ChannelLayout struct {
	Channels []ChannelDescriptor
	ScanSize uint32
}

// GenericName maps a channel name to the name shared by its siblings, used for attributes the
// driver exposes once per channel type: "in_accel_x" becomes "in_accel", "in_voltage0" becomes
// "in_voltage".
func GenericName(fullName string) (string, error) {
	prefix := ""
	rest := fullName
	for _, dir := range []string{"in", "out"} {
		if strings.HasPrefix(fullName, dir+"_") {
			prefix = dir + "_"
			rest = fullName[len(prefix):]
			break
		}
	}
	token, _, _ := strings.Cut(rest, "_")
	token = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return -1
		}
		return r
	}, token)
	if token == "" {
		return "", errors.Wrapf(ErrParse, "channel name %q has no type", fullName)
	}
	return prefix + token, nil
}

// readParam reads <dir>/<name>_<param>, then <dir>/<generic>_<param>, falling back to def when
// neither exists.
func readParam(dir, name, generic, param string, def float64) (float64, error) {
	for _, base := range []string{name, generic} {
		val, err := ReadFloat(filepath.Join(dir, base+"_"+param))
		if err == nil {
			return val, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}
	}
	return def, nil
}

func readScanTypeFor(scanDir, name, generic string) (ScanType, error) {
	text, err := ReadString(filepath.Join(scanDir, name+"_type"))
	if errors.Is(err, fs.ErrNotExist) {
		text, err = ReadString(filepath.Join(scanDir, generic+"_type"))
	}
	if err != nil {
		return ScanType{}, err
	}
	return ParseScanType(text)
}

func buildChannel(deviceDir, scanDir, name string) (ChannelDescriptor, error) {
	generic, err := GenericName(name)
	if err != nil {
		return ChannelDescriptor{}, err
	}
	ch := ChannelDescriptor{Name: name, GenericName: generic}

	if ch.Index, err = ReadUint(filepath.Join(scanDir, name+"_index")); err != nil {
		return ChannelDescriptor{}, err
	}
	if ch.Scale, err = readParam(deviceDir, name, generic, "scale", 1.0); err != nil {
		return ChannelDescriptor{}, err
	}
	if ch.Offset, err = readParam(deviceDir, name, generic, "offset", 0.0); err != nil {
		return ChannelDescriptor{}, err
	}
	st, err := readScanTypeFor(scanDir, name, generic)
	if err != nil {
		return ChannelDescriptor{}, err
	}
	ch.setScanType(st)
	return ch, nil
}

// BuildChannels reads the enabled scan elements of a device and returns them sorted by index with
// record locations filled in. On any failure no layout is returned.
func BuildChannels(deviceDir string) (*ChannelLayout, error) {
	scanDir := filepath.Join(deviceDir, scanElementsDir)
	entries, err := os.ReadDir(scanDir)
	if err != nil {
		return nil, newIOError("scan", scanDir, err)
	}

	var channels []ChannelDescriptor
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), "_en")
		if !ok || name == "" {
			continue
		}
		enabled, err := ReadInt(filepath.Join(scanDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if enabled != 1 {
			continue
		}
		ch, err := buildChannel(deviceDir, scanDir, name)
		if err != nil {
			return nil, errors.Wrapf(err, "channel %s", name)
		}
		channels = append(channels, ch)
	}

	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].Index < channels[j].Index
	})
	size := SizeFromChannels(channels)
	return &ChannelLayout{Channels: channels, ScanSize: size}, nil
}

// SizeFromChannels assigns each channel, in order, the next offset aligned to its own width and
// returns the total record size.
func SizeFromChannels(channels []ChannelDescriptor) uint32 {
	var bytes uint32
	for i := range channels {
		width := channels[i].ByteWidth
		if width > 0 && bytes%width != 0 {
			bytes += width - bytes%width
		}
		channels[i].Location = bytes
		bytes += width
	}
	return bytes
}

// Calibrated returns a copy of the layout with the per-axis correction folded into the scale and
// offset of its three axis channels, so decoding yields corrected values directly. Layouts that do
// not have exactly three channels are returned unchanged.
func (layout *ChannelLayout) Calibrated(axisMap AxisMap, cal calibration.Axes) *ChannelLayout {
	out := &ChannelLayout{
		Channels: append([]ChannelDescriptor(nil), layout.Channels...),
		ScanSize: layout.ScanSize,
	}
	if len(out.Channels) != 3 {
		return out
	}
	for i := range out.Channels {
		offset, scale := cal.Component(int(axisMap[i]))
		out.Channels[i].Scale *= scale
		out.Channels[i].Offset += offset / out.Channels[i].Scale
	}
	return out
}
