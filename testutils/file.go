// Package testutils builds fake IIO sysfs trees for tests.
package testutils

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"go.viam.com/test"
)

// Directory and file naming of the kernel's IIO sysfs tree.
const (
	devicePrefix  = "iio:device"
	triggerPrefix = "trigger"
	scanElements  = "scan_elements"
)

// WriteFile writes content to path, creating parent directories, and fails the test if it cannot.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	test.That(t, os.MkdirAll(filepath.Dir(path), 0o755), test.ShouldBeNil)
	test.That(t, os.WriteFile(path, []byte(content), 0o644), test.ShouldBeNil)
}

// FakeChannel is one scan element of a fake device.
type FakeChannel struct {
	Name    string
	Index   int
	Type    string
	Enabled bool
}

// AxisChannels returns disabled x, y and z channels named after prefix (e.g. "in_accel") at
// indices 0 to 2, stored as le:s12/16>>4 like the LSM303DLHC.
func AxisChannels(prefix string) []FakeChannel {
	return []FakeChannel{
		{prefix + "_x", 0, "le:s12/16>>4", false},
		{prefix + "_y", 1, "le:s12/16>>4", false},
		{prefix + "_z", 2, "le:s12/16>>4", false},
	}
}

// MakeFakeDevice lays out the sysfs attributes of IIO device n under root and returns its
// directory.
func MakeFakeDevice(t *testing.T, root string, n int, name string, channels []FakeChannel) string {
	t.Helper()
	dir := filepath.Join(root, fmt.Sprintf("%s%d", devicePrefix, n))
	scanDir := filepath.Join(dir, scanElements)
	WriteFile(t, filepath.Join(dir, "name"), name+"\n")
	WriteFile(t, filepath.Join(dir, "sampling_frequency"), "0\n")
	WriteFile(t, filepath.Join(dir, "buffer", "length"), "0\n")
	WriteFile(t, filepath.Join(dir, "buffer", "enable"), "0\n")
	WriteFile(t, filepath.Join(dir, "trigger", "current_trigger"), "\n")
	for _, ch := range channels {
		enabled := "0"
		if ch.Enabled {
			enabled = "1"
		}
		WriteFile(t, filepath.Join(scanDir, ch.Name+"_en"), enabled+"\n")
		WriteFile(t, filepath.Join(scanDir, ch.Name+"_index"), strconv.Itoa(ch.Index)+"\n")
		WriteFile(t, filepath.Join(scanDir, ch.Name+"_type"), ch.Type+"\n")
	}
	return dir
}

// MakeFakeTrigger lays out trigger n under root and returns its directory.
func MakeFakeTrigger(t *testing.T, root string, n int, name string) string {
	t.Helper()
	dir := filepath.Join(root, fmt.Sprintf("%s%d", triggerPrefix, n))
	WriteFile(t, filepath.Join(dir, "name"), name+"\n")
	WriteFile(t, filepath.Join(dir, "delay_ns"), "0\n")
	return dir
}

// WriteScans stands in for the character device of device n under devRoot, holding the given
// three-axis scans as le:s12/16>>4 records.
func WriteScans(t *testing.T, devRoot string, n int, scans ...[3]int64) {
	t.Helper()
	var data []byte
	for _, scan := range scans {
		for _, v := range scan {
			data = binary.LittleEndian.AppendUint16(data, uint16(v<<4))
		}
	}
	WriteFile(t, filepath.Join(devRoot, fmt.Sprintf("%s%d", devicePrefix, n)), string(data))
}

// ReferenceBoard is the sensor set of the reference board, in accel, magn, gyro order.
var ReferenceBoard = []struct {
	Name    string
	Channel string
}{
	{"lsm303dlhc_accel", "in_accel"},
	{"lsm303dlhc_magn", "in_magn"},
	{"l3gd20", "in_anglvel"},
}

// MakeReferenceBoard lays out the reference board's three sensors as devices 0 to 2, their
// triggers hrtimertrig0 to hrtimertrig2, and empty character devices under devRoot. With
// factory set, the hrtimer trigger factory is created too.
func MakeReferenceBoard(t *testing.T, root, devRoot string, factory bool) {
	t.Helper()
	for n, dev := range ReferenceBoard {
		MakeFakeDevice(t, root, n, dev.Name, AxisChannels(dev.Channel))
		MakeFakeTrigger(t, root, n, fmt.Sprintf("hrtimertrig%d", n))
		WriteScans(t, devRoot, n)
	}
	if factory {
		WriteFile(t, filepath.Join(root, "iio_hrtimer_trigger", "add_trigger"), "")
	}
}
