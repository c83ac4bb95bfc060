package gpu_test

import (
	"testing"

	"codeberg.org/mutker/nvfanmon/internal/control"
	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/gpu"
	"codeberg.org/mutker/nvfanmon/internal/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newActuator(f *fakeOracle) *gpu.Actuator {
	return gpu.NewActuator(f, "", control.DefaultBounds())
}

func TestSetFanControlMode(t *testing.T) {
	fake := newFakeOracle()
	actuator := newActuator(fake)

	manual, err := actuator.SetFanControlMode(true)
	require.NoError(t, err)
	assert.True(t, manual)

	manual, err = actuator.SetFanControlMode(false)
	require.NoError(t, err)
	assert.False(t, manual)

	assert.Equal(t, []string{"GPUFanControlState=1", "GPUFanControlState=0"}, fake.assigned)
}

func TestSetFanControlModeReadBack(t *testing.T) {
	t.Run("mode not taken", func(t *testing.T) {
		ignoring := &ignoringOracle{fakeOracle: newFakeOracle()}

		manual, err := gpu.NewActuator(ignoring, "", control.DefaultBounds()).SetFanControlMode(true)
		require.NoError(t, err)
		assert.False(t, manual)
	})

	t.Run("unparseable read-back", func(t *testing.T) {
		ignoring := &ignoringOracle{fakeOracle: newFakeOracle()}
		ignoring.values[oracle.FanControlState] = "ERROR"

		_, err := gpu.NewActuator(ignoring, "", control.DefaultBounds()).SetFanControlMode(true)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrActuator))
		assert.True(t, errors.HasCode(err, gpu.ErrParseMode))
	})

	t.Run("assign fails", func(t *testing.T) {
		fake := newFakeOracle()
		fake.assignErr = errCallFailed

		_, err := newActuator(fake).SetFanControlMode(true)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrActuator))
		assert.True(t, errors.HasCode(err, errors.ErrOracleCall))
	})
}

// ignoringOracle accepts assignments without changing any value.
type ignoringOracle struct {
	*fakeOracle
}

func (i *ignoringOracle) Assign(attr oracle.Attribute, value int) (string, error) {
	saved := i.values[attr]
	reply, err := i.fakeOracle.Assign(attr, value)
	i.values[attr] = saved

	return reply, err
}

func TestSetSpeed(t *testing.T) {
	fake := newFakeOracle()

	speed, err := newActuator(fake).SetSpeed(75)
	require.NoError(t, err)
	assert.Equal(t, 75, speed)
	assert.Equal(t, []string{"GPUCurrentFanSpeed=75"}, fake.assigned)
}

func TestSetSpeedCustomAttribute(t *testing.T) {
	fake := newFakeOracle()

	_, err := gpu.NewActuator(fake, "GPUTargetFanSpeed", control.DefaultBounds()).SetSpeed(60)
	require.NoError(t, err)
	assert.Equal(t, []string{"GPUTargetFanSpeed=60"}, fake.assigned)
}

func TestSetSpeedErrors(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		setup     func(*fakeOracle)
		wantCode  errors.ErrorCode
		wantCalls int
	}{
		{
			name:      "below floor",
			requested: 59,
			wantCode:  gpu.ErrSpeedOutOfBounds,
		},
		{
			name:      "above ceiling",
			requested: 81,
			wantCode:  gpu.ErrSpeedOutOfBounds,
		},
		{
			name:      "call fails",
			requested: 70,
			setup:     func(f *fakeOracle) { f.assignErr = errCallFailed },
			wantCode:  errors.ErrOracleCall,
			wantCalls: 1,
		},
		{
			name:      "unparseable confirmation",
			requested: 70,
			setup: func(f *fakeOracle) {
				f.assignReply = func(int) string { return "ERROR: Error assigning value" }
			},
			wantCode:  gpu.ErrParseAssignment,
			wantCalls: 1,
		},
		{
			name:      "empty confirmation",
			requested: 70,
			setup:     func(f *fakeOracle) { f.assignReply = func(int) string { return "  " } },
			wantCode:  gpu.ErrParseAssignment,
			wantCalls: 1,
		},
		{
			name:      "confirmed value differs",
			requested: 70,
			setup: func(f *fakeOracle) {
				f.assignReply = func(int) string { return "Attribute 'GPUCurrentFanSpeed' (host:0[fan:0]) assigned value 68." }
			},
			wantCode:  gpu.ErrSpeedMismatch,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeOracle()
			if tt.setup != nil {
				tt.setup(fake)
			}

			_, err := newActuator(fake).SetSpeed(tt.requested)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrActuator))
			assert.True(t, errors.HasCode(err, tt.wantCode))
			assert.Len(t, fake.assigned, tt.wantCalls)
		})
	}
}
