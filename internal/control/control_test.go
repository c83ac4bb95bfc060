package control_test

import (
	"testing"

	"codeberg.org/mutker/nvfanmon/internal/control"
	"codeberg.org/mutker/nvfanmon/internal/errors"
	"github.com/stretchr/testify/assert"
)

func params(target int) control.Params {
	return control.Params{
		Target:    target,
		Tolerance: control.DefaultTolerance,
		Bounds:    control.DefaultBounds(),
	}
}

func TestDecideScenarios(t *testing.T) {
	tests := []struct {
		name        string
		state       control.State
		currentTemp int
		wantSpeed   int
		wantDelta   int
	}{
		{
			name:        "rising above target increases by the excess",
			state:       control.State{CurrentSpeed: 70, PreviousTemperature: 70},
			currentTemp: 75,
			wantSpeed:   75,
			wantDelta:   5,
		},
		{
			name:        "falling below target decreases by the shortfall",
			state:       control.State{CurrentSpeed: 75, PreviousTemperature: 75},
			currentTemp: 62,
			wantSpeed:   67,
			wantDelta:   -13,
		},
		{
			name:        "above target but already cooling holds",
			state:       control.State{CurrentSpeed: 65, PreviousTemperature: 80},
			currentTemp: 72,
			wantSpeed:   65,
			wantDelta:   -8,
		},
		{
			name:        "below target but already warming holds",
			state:       control.State{CurrentSpeed: 70, PreviousTemperature: 60},
			currentTemp: 65,
			wantSpeed:   70,
			wantDelta:   5,
		},
		{
			name:        "flat above target increases",
			state:       control.State{CurrentSpeed: 70, PreviousTemperature: 73},
			currentTemp: 73,
			wantSpeed:   73,
			wantDelta:   0,
		},
		{
			name:        "flat below target decreases",
			state:       control.State{CurrentSpeed: 70, PreviousTemperature: 67},
			currentTemp: 67,
			wantSpeed:   67,
			wantDelta:   0,
		},
		{
			name:        "increase capped at ceiling",
			state:       control.State{CurrentSpeed: 78, PreviousTemperature: 80},
			currentTemp: 84,
			wantSpeed:   80,
			wantDelta:   4,
		},
		{
			name:        "decrease clamped at floor",
			state:       control.State{CurrentSpeed: 62, PreviousTemperature: 55},
			currentTemp: 50,
			wantSpeed:   60,
			wantDelta:   -5,
		},
		{
			name:        "upper edge of the band holds",
			state:       control.State{CurrentSpeed: 70, PreviousTemperature: 60},
			currentTemp: 71,
			wantSpeed:   70,
			wantDelta:   11,
		},
		{
			name:        "lower edge of the band holds",
			state:       control.State{CurrentSpeed: 70, PreviousTemperature: 80},
			currentTemp: 69,
			wantSpeed:   70,
			wantDelta:   -11,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			speed, delta := control.Decide(params(70), tt.state, tt.currentTemp)
			assert.Equal(t, tt.wantSpeed, speed)
			assert.Equal(t, tt.wantDelta, delta)
		})
	}
}

func TestDecideNoOpInsideBand(t *testing.T) {
	for _, tolerance := range []int{0, 1, 3} {
		p := params(70)
		p.Tolerance = tolerance

		for speed := p.Bounds.Floor; speed <= p.Bounds.Ceiling; speed++ {
			for temp := p.Target - tolerance; temp <= p.Target+tolerance; temp++ {
				for prev := 40; prev <= 90; prev += 5 {
					got, _ := control.Decide(p, control.State{CurrentSpeed: speed, PreviousTemperature: prev}, temp)
					assert.Equal(t, speed, got, "speed=%d temp=%d prev=%d tol=%d", speed, temp, prev, tolerance)
				}
			}
		}
	}
}

func TestDecideStaysWithinBounds(t *testing.T) {
	p := params(70)

	for speed := p.Bounds.Floor; speed <= p.Bounds.Ceiling; speed++ {
		for temp := 30; temp <= 100; temp++ {
			for prev := 30; prev <= 100; prev += 7 {
				got, _ := control.Decide(p, control.State{CurrentSpeed: speed, PreviousTemperature: prev}, temp)
				assert.True(t, p.Bounds.Contains(got), "speed=%d temp=%d prev=%d -> %d", speed, temp, prev, got)
			}
		}
	}
}

func TestDecideHoldsWhileCooling(t *testing.T) {
	p := params(70)

	for temp := 72; temp <= 95; temp++ {
		for drop := 1; drop <= 10; drop++ {
			state := control.State{CurrentSpeed: 65, PreviousTemperature: temp + drop}
			got, delta := control.Decide(p, state, temp)
			assert.Equal(t, 65, got)
			assert.LessOrEqual(t, delta, -1)
		}
	}
}

func TestSpeedBoundsValidate(t *testing.T) {
	assert.NoError(t, control.DefaultBounds().Validate())
	assert.NoError(t, control.SpeedBounds{Floor: 1, Ceiling: 100}.Validate())
	assert.NoError(t, control.SpeedBounds{Floor: 70, Ceiling: 70}.Validate())

	for _, b := range []control.SpeedBounds{
		{Floor: 0, Ceiling: 80},
		{Floor: 60, Ceiling: 101},
		{Floor: 81, Ceiling: 80},
	} {
		err := b.Validate()
		assert.Error(t, err, b.String())
		assert.True(t, errors.HasCode(err, errors.ErrInvalidBounds))
	}
}
