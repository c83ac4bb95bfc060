package gpu

import (
	"fmt"

	"codeberg.org/mutker/nvfanmon/internal/control"
	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/logger"
	"codeberg.org/mutker/nvfanmon/internal/oracle"
)

// Actuator forwards fan commands to the oracle. It never adjusts a request;
// a speed outside the bounds is refused before the oracle is called.
type Actuator struct {
	oracle   oracle.Oracle
	fanSpeed oracle.Attribute
	bounds   control.SpeedBounds
}

func NewActuator(o oracle.Oracle, fanSpeedAttribute string, bounds control.SpeedBounds) *Actuator {
	return &Actuator{
		oracle:   o,
		fanSpeed: oracle.FanSpeedAttribute(fanSpeedAttribute),
		bounds:   bounds,
	}
}

func (a *Actuator) SetFanControlMode(manual bool) (bool, error) {
	errFactory := errors.New()

	value := 0
	if manual {
		value = 1
	}

	if _, err := a.oracle.Assign(oracle.FanControlState, value); err != nil {
		return false, errFactory.Wrap(errors.ErrActuator, err)
	}

	text, err := a.oracle.Query(oracle.FanControlState)
	if err != nil {
		return false, errFactory.Wrap(errors.ErrActuator, err)
	}

	confirmed, err := parseMode(text)
	if err != nil {
		return false, errFactory.Wrap(errors.ErrActuator, err)
	}

	logger.Debug().
		Bool("requested_manual", manual).
		Bool("confirmed_manual", confirmed).
		Msg("Fan control mode set")

	return confirmed, nil
}

func (a *Actuator) SetSpeed(requested int) (int, error) {
	errFactory := errors.New()

	if !a.bounds.Contains(requested) {
		err := errFactory.WithData(ErrSpeedOutOfBounds, fmt.Sprintf("%d%% not in %s", requested, a.bounds))
		return 0, errFactory.Wrap(errors.ErrActuator, err)
	}

	text, err := a.oracle.Assign(a.fanSpeed, requested)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrActuator, err)
	}

	confirmed, err := parseAssigned(text)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrActuator, err)
	}

	if confirmed != requested {
		err := errFactory.WithData(ErrSpeedMismatch, fmt.Sprintf("requested %d%%, oracle reports %d%%", requested, confirmed))
		return confirmed, errFactory.Wrap(errors.ErrActuator, err)
	}

	logger.Debug().Int("speed", confirmed).Msg("Fan speed set")

	return confirmed, nil
}
