package iio

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/iio/utils"
)

const (
	// DevicePrefix prefixes IIO device entries, e.g. "iio:device0".
	DevicePrefix = "iio:device"
	// TriggerPrefix prefixes IIO trigger entries, e.g. "trigger2".
	TriggerPrefix = "trigger"
)

// Topology locates the IIO sysfs tree and the matching character devices.
type Topology struct {
	// Root is the sysfs directory listing devices and triggers.
	Root string
	// DevRoot is the directory holding the iio:deviceN character devices.
	DevRoot string
}

// DefaultTopology honors IIO_SYSFS_ROOT and IIO_DEV_ROOT so fixture trees can stand in for the kernel.
func DefaultTopology() Topology {
	return Topology{Root: utils.SysfsRoot(), DevRoot: utils.DevRoot()}
}

// DeviceDir is the sysfs directory of device n.
func (topo Topology) DeviceDir(n int) string {
	return filepath.Join(topo.Root, fmt.Sprintf("%s%d", DevicePrefix, n))
}

// TriggerDir is the sysfs directory of trigger n.
func (topo Topology) TriggerDir(n int) string {
	return filepath.Join(topo.Root, fmt.Sprintf("%s%d", TriggerPrefix, n))
}

// DevicePath is the character device streaming scans for device n.
func (topo Topology) DevicePath(n int) string {
	return filepath.Join(topo.DevRoot, fmt.Sprintf("%s%d", DevicePrefix, n))
}

// instanceNumber extracts N from "<prefix>N". A ':' right after the digits marks a different kind
// of entry (e.g. "iio:device0:buffer0") and is rejected.
func instanceNumber(entry, prefix string) (int, bool) {
	if !strings.HasPrefix(entry, prefix) {
		return 0, false
	}
	rest := entry[len(prefix):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 || (end < len(rest) && rest[end] == ':') {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Resolve maps a human readable name to the instance number of the first "<typePrefix>N" entry
// whose name attribute matches exactly. Entries without a readable name are skipped.
func (topo Topology) Resolve(name, typePrefix string) (int, error) {
	entries, err := os.ReadDir(topo.Root)
	if err != nil {
		return -1, newIOError("scan", topo.Root, err)
	}
	for _, entry := range entries {
		n, ok := instanceNumber(entry.Name(), typePrefix)
		if !ok {
			continue
		}
		namePath := filepath.Join(topo.Root, fmt.Sprintf("%s%d", typePrefix, n), "name")
		entryName, err := ReadString(namePath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				continue
			}
			return -1, err
		}
		if entryName == name {
			return n, nil
		}
	}
	return -1, errors.Wrapf(ErrNotFound, "no %s entry named %q under %s", typePrefix, name, topo.Root)
}

// ResolveDevice resolves an IIO device by name.
func (topo Topology) ResolveDevice(name string) (int, error) {
	return topo.Resolve(name, DevicePrefix)
}
