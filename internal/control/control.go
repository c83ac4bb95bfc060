// Package control holds the fan speed decision rule.
//
// Decide nudges the fan speed by the distance between the current and the
// target temperature, but only while the temperature is not already moving
// toward the target. Thermal response lags a fan speed change by several
// seconds; without the trend check the loop keeps correcting an error that is
// already shrinking and overshoots.
package control

import (
	"fmt"

	"codeberg.org/mutker/nvfanmon/internal/errors"
)

const (
	MinSpeed = 1
	MaxSpeed = 100

	DefaultTolerance = 1
	DefaultFloor     = 60
	DefaultCeiling   = 80

	MaxTargetTemperature = 85
)

// SpeedBounds is the range every commanded fan speed must lie in. Floor is
// the safety minimum, Ceiling the highest speed the vendor honours.
type SpeedBounds struct {
	Floor   int
	Ceiling int
}

// DefaultBounds returns the default safety floor and ceiling.
func DefaultBounds() SpeedBounds {
	return SpeedBounds{Floor: DefaultFloor, Ceiling: DefaultCeiling}
}

func (b SpeedBounds) Validate() error {
	if b.Floor < MinSpeed || b.Ceiling > MaxSpeed || b.Floor > b.Ceiling {
		return errors.New().WithData(errors.ErrInvalidBounds, b.String())
	}

	return nil
}

// Contains reports whether speed lies within the bounds.
func (b SpeedBounds) Contains(speed int) bool {
	return speed >= b.Floor && speed <= b.Ceiling
}

func (b SpeedBounds) Clamp(speed int) int {
	return clamp(speed, b.Floor, b.Ceiling)
}

func (b SpeedBounds) String() string {
	return fmt.Sprintf("[%d%%, %d%%]", b.Floor, b.Ceiling)
}

// Params are the fixed inputs of the decision rule.
type Params struct {
	Target    int
	Tolerance int
	Bounds    SpeedBounds
}

// State is the controller's memory between ticks.
type State struct {
	CurrentSpeed        int
	PreviousTemperature int
	TemperatureDelta    int
}

// Decide returns the fan speed to command for currentTemp and the temperature
// change since the previous tick.
func Decide(p Params, s State, currentTemp int) (newSpeed, delta int) {
	delta = currentTemp - s.PreviousTemperature
	newSpeed = s.CurrentSpeed

	switch {
	case currentTemp > p.Target+p.Tolerance:
		// Too hot. Hold while already cooling.
		if delta > -1 {
			newSpeed = min(s.CurrentSpeed+(currentTemp-p.Target), p.Bounds.Ceiling)
		}
	case currentTemp < p.Target-p.Tolerance:
		// Too cool. Hold while already warming.
		if delta < 1 {
			newSpeed = p.Bounds.Clamp(s.CurrentSpeed - (p.Target - currentTemp))
		}
	}

	return newSpeed, delta
}

func clamp(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}

	if value > maxValue {
		return maxValue
	}

	return value
}
