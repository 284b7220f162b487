package acquisition

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/iio/logging"
	"go.viam.com/iio/sensor/calibration"
	"go.viam.com/iio/sensor/iio"
)

// SensorSetup is everything needed to bring one role's sensor up.
type SensorSetup struct {
	Role   Role
	Config iio.SensorConfig
	// Trigger is the name of the trigger driving the sensor, e.g. "hrtimertrig0".
	Trigger string
	// TriggerID is the id passed to the trigger factory when creating Trigger.
	TriggerID int
	// Calibration is folded into the channel layout when set.
	Calibration *calibration.Axes
}

// Acquisition owns the sensors and trigger bindings of one run.
type Acquisition struct {
	topo    iio.Topology
	factory *iio.TriggerFactory
	setups  []SensorSetup
	logger  logging.Logger

	triggers map[string]*iio.TriggerBinding
	sensors  map[Role]*iio.Sensor
	opened   []*iio.Sensor
}

// New returns an Acquisition for the given sensors. When factory is nil, triggers are expected
// to exist already.
func New(topo iio.Topology, factory *iio.TriggerFactory, setups []SensorSetup, logger logging.Logger) *Acquisition {
	return &Acquisition{
		topo:     topo,
		factory:  factory,
		setups:   setups,
		logger:   logger,
		triggers: map[string]*iio.TriggerBinding{},
		sensors:  map[Role]*iio.Sensor{},
	}
}

// Setup creates and resolves every trigger, then opens the sensors in order. On failure the
// sensors opened so far are torn down.
func (a *Acquisition) Setup(ctx context.Context) error {
	for _, setup := range a.setups {
		if _, ok := a.sensors[setup.Role]; ok {
			return errors.Errorf("%s configured twice", setup.Role)
		}
		trigger, err := a.trigger(setup)
		if err == nil {
			err = ctx.Err()
		}
		if err == nil {
			sensor := iio.NewSensor(a.topo, setup.Config, a.logger.Sublogger(setup.Role.String()))
			if err = sensor.Open(ctx, trigger, setup.Calibration); err == nil {
				a.sensors[setup.Role] = sensor
				a.opened = append(a.opened, sensor)
				continue
			}
		}
		err = errors.Wrapf(err, "setting up %s", setup.Role)
		return multierr.Combine(err, a.Teardown())
	}
	return nil
}

func (a *Acquisition) trigger(setup SensorSetup) (*iio.TriggerBinding, error) {
	if binding, ok := a.triggers[setup.Trigger]; ok {
		return binding, nil
	}
	if a.factory != nil {
		// Fails when the trigger survives from an earlier run, which is fine.
		if err := a.factory.Create(setup.TriggerID); err != nil {
			a.logger.Warnw("could not create trigger", "trigger", setup.Trigger, "id", setup.TriggerID, "error", err)
		}
	}
	binding, err := a.topo.ResolveTrigger(setup.Trigger)
	if err != nil {
		return nil, err
	}
	a.triggers[setup.Trigger] = binding
	return binding, nil
}

// Sensor returns the open sensor playing role, or nil.
func (a *Acquisition) Sensor(role Role) *iio.Sensor {
	return a.sensors[role]
}

// Teardown stops and closes every open sensor, newest first, and keeps going past failures.
func (a *Acquisition) Teardown() error {
	var err error
	for i := len(a.opened) - 1; i >= 0; i-- {
		sensor := a.opened[i]
		if sensor.State() == iio.StateStreaming {
			err = multierr.Append(err, sensor.Stop())
		}
		err = multierr.Append(err, sensor.Close())
	}
	a.opened = nil
	a.sensors = map[Role]*iio.Sensor{}
	a.triggers = map[string]*iio.TriggerBinding{}
	return err
}
