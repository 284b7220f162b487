package iio

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// HRTimerFactoryDir is the configfs-style directory through which hrtimer triggers are created,
// relative to the sysfs devices root.
const HRTimerFactoryDir = "iio_hrtimer_trigger"

// TriggerFactory creates software triggers by writing their id to add_trigger.
type TriggerFactory struct {
	Dir string
}

// NewHRTimerFactory returns the hrtimer trigger factory of a topology.
func NewHRTimerFactory(topo Topology) TriggerFactory {
	return TriggerFactory{Dir: filepath.Join(topo.Root, HRTimerFactoryDir)}
}

// Create asks the kernel for trigger id. Creating a trigger that already exists fails; callers
// usually go on to resolve it by name regardless.
func (f TriggerFactory) Create(id int) error {
	return WriteInt(filepath.Join(f.Dir, "add_trigger"), id)
}

// TriggerBinding is a resolved trigger that at most one sensor may drive at a time.
type TriggerBinding struct {
	Name   string
	Number int
	Dir    string

	mu     sync.Mutex
	holder string
}

// ResolveTrigger finds the trigger with the given name.
func (topo Topology) ResolveTrigger(name string) (*TriggerBinding, error) {
	n, err := topo.Resolve(name, TriggerPrefix)
	if err != nil {
		return nil, err
	}
	return &TriggerBinding{Name: name, Number: n, Dir: topo.TriggerDir(n)}, nil
}

// Holder returns the sensor currently bound to the trigger, or "".
func (b *TriggerBinding) Holder() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holder
}

func (b *TriggerBinding) acquire(holder string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.holder != "" {
		return errors.Wrapf(ErrTriggerBusy, "%s is bound to %s", b.Name, b.holder)
	}
	b.holder = holder
	return nil
}

func (b *TriggerBinding) release() {
	b.mu.Lock()
	b.holder = ""
	b.mu.Unlock()
}

// SetPeriod programs the trigger's firing interval.
func (b *TriggerBinding) SetPeriod(period time.Duration) error {
	return WriteInt(filepath.Join(b.Dir, "delay_ns"), int(period.Nanoseconds()))
}
