package oracle

import (
	"testing"

	"codeberg.org/mutker/nvfanmon/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	temp        uint32
	fanSpeeds   []uint32
	targets     []int
	policies    []nvml.FanControlPolicy
	setSpeeds   map[int]int
	defaultFans []int
	setRet      nvml.Return

	// ignoreSet accepts fan commands without applying them.
	ignoreSet bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		temp:      67,
		fanSpeeds: []uint32{55, 56},
		targets:   []int{55, 56},
		policies: []nvml.FanControlPolicy{
			nvml.FAN_POLICY_TEMPERATURE_CONTINOUS_SW,
			nvml.FAN_POLICY_TEMPERATURE_CONTINOUS_SW,
		},
		setSpeeds: map[int]int{},
		setRet:    nvml.SUCCESS,
	}
}

func (d *fakeDevice) GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return) {
	return d.temp, nvml.SUCCESS
}

func (*fakeDevice) GetUtilizationRates() (nvml.Utilization, nvml.Return) {
	return nvml.Utilization{Gpu: 93, Memory: 41}, nvml.SUCCESS
}

func (*fakeDevice) GetEncoderUtilization() (uint32, uint32, nvml.Return) {
	return 3, 167000, nvml.SUCCESS
}

func (*fakeDevice) GetDecoderUtilization() (uint32, uint32, nvml.Return) {
	return 7, 167000, nvml.SUCCESS
}

func (*fakeDevice) GetPcieThroughput(counter nvml.PcieUtilCounter) (uint32, nvml.Return) {
	if counter == nvml.PCIE_UTIL_TX_BYTES {
		return 1576000, nvml.SUCCESS
	}
	return 0, nvml.SUCCESS
}

func (*fakeDevice) GetClockInfo(clock nvml.ClockType) (uint32, nvml.Return) {
	if clock == nvml.CLOCK_MEM {
		return 5005, nvml.SUCCESS
	}
	return 1785, nvml.SUCCESS
}

func (*fakeDevice) GetMemoryInfo() (nvml.Memory, nvml.Return) {
	return nvml.Memory{Total: 8192 * bytesPerMiB, Used: 1024 * bytesPerMiB, Free: 7168 * bytesPerMiB}, nvml.SUCCESS
}

func (d *fakeDevice) GetNumFans() (int, nvml.Return) {
	return len(d.fanSpeeds), nvml.SUCCESS
}

func (d *fakeDevice) GetFanSpeed_v2(fan int) (uint32, nvml.Return) {
	return d.fanSpeeds[fan], nvml.SUCCESS
}

func (d *fakeDevice) GetTargetFanSpeed(fan int) (int, nvml.Return) {
	return d.targets[fan], nvml.SUCCESS
}

func (d *fakeDevice) GetFanControlPolicy_v2(fan int) (nvml.FanControlPolicy, nvml.Return) {
	return d.policies[fan], nvml.SUCCESS
}

func (d *fakeDevice) SetFanSpeed_v2(fan, speed int) nvml.Return {
	if d.setRet != nvml.SUCCESS {
		return d.setRet
	}
	d.setSpeeds[fan] = speed
	if !d.ignoreSet {
		d.targets[fan] = speed
		d.policies[fan] = nvml.FAN_POLICY_MANUAL
	}
	return nvml.SUCCESS
}

func (d *fakeDevice) SetDefaultFanSpeed_v2(fan int) nvml.Return {
	d.defaultFans = append(d.defaultFans, fan)
	if !d.ignoreSet {
		d.policies[fan] = nvml.FAN_POLICY_TEMPERATURE_CONTINOUS_SW
	}
	return nvml.SUCCESS
}

func (*fakeDevice) GetCurrPcieLinkGeneration() (int, nvml.Return) { return 2, nvml.SUCCESS }

func (*fakeDevice) GetMaxPcieLinkGeneration() (int, nvml.Return) { return 3, nvml.SUCCESS }

func (*fakeDevice) GetCurrPcieLinkWidth() (int, nvml.Return) { return 8, nvml.SUCCESS }

func (*fakeDevice) GetMaxPcieLinkWidth() (int, nvml.Return) { return 16, nvml.SUCCESS }

func (*fakeDevice) GetNumGpuCores() (int, nvml.Return) { return 2304, nvml.SUCCESS }

func newTestNVML(device *fakeDevice) *NVML {
	return newNVML(device,
		func() (string, nvml.Return) { return "535.104.05", nvml.SUCCESS },
		func() nvml.Return { return nvml.SUCCESS })
}

func TestNVMLQueryFormatsLikeSettings(t *testing.T) {
	n := newTestNVML(newFakeDevice())

	tests := []struct {
		attr Attribute
		want string
	}{
		{Temperature, "67"},
		// 1576000 KB/s over a gen2 x8 link (500 MB/s per lane) is 39%.
		{Utilization, "graphics=93, memory=41, video=7, PCIe=39"},
		{ClockFreqs, "1785,5005"},
		{UsedMemory, "1024"},
		{TotalMemory, "8192"},
		{PCIeGen, "3"},
		{PCIeMaxWidth, "16"},
		{PCIeCurrentWidth, "8"},
		{PCIeMaxSpeed, "8000"},
		{PCIeCurrentSpeed, "5000"},
		{CUDACores, "2304"},
		{DriverVersion, "535.104.05"},
		{FanControlState, "0"},
	}

	for _, tt := range tests {
		got, err := n.Query(tt.attr)
		require.NoError(t, err, tt.attr.String())
		assert.Equal(t, tt.want, got, tt.attr.String())
	}
}

func TestNVMLFanRPMUnsupported(t *testing.T) {
	n := newTestNVML(newFakeDevice())

	_, err := n.Query(FanRPM)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrUnsupported))
}

func TestNVMLControlState(t *testing.T) {
	device := newFakeDevice()
	n := newTestNVML(device)

	_, err := n.Assign(FanControlState, 1)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 55, 1: 56}, device.setSpeeds)

	state, err := n.Query(FanControlState)
	require.NoError(t, err)
	assert.Equal(t, "1", state)

	_, err = n.Assign(FanControlState, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, device.defaultFans)

	state, err = n.Query(FanControlState)
	require.NoError(t, err)
	assert.Equal(t, "0", state)
}

func TestNVMLAssignFanSpeed(t *testing.T) {
	device := newFakeDevice()
	n := newTestNVML(device)

	out, err := n.Assign(FanSpeedAttribute(""), 72)
	require.NoError(t, err)
	assert.Equal(t, "Attribute 'GPUCurrentFanSpeed' (nvml[fan:0]) assigned value 72.", out)
	assert.Equal(t, map[int]int{0: 72, 1: 72}, device.setSpeeds)
}

func TestNVMLReadBackReflectsDevice(t *testing.T) {
	device := newFakeDevice()
	device.ignoreSet = true
	n := newTestNVML(device)

	_, err := n.Assign(FanControlState, 1)
	require.NoError(t, err)

	state, err := n.Query(FanControlState)
	require.NoError(t, err)
	assert.Equal(t, "0", state)

	out, err := n.Assign(FanSpeedAttribute(""), 42)
	require.NoError(t, err)
	assert.Equal(t, "Attribute 'GPUCurrentFanSpeed' (nvml[fan:0]) assigned value 55.", out)
}

func TestNVMLMixedPolicyIsNotManual(t *testing.T) {
	device := newFakeDevice()
	device.policies[0] = nvml.FAN_POLICY_MANUAL
	n := newTestNVML(device)

	state, err := n.Query(FanControlState)
	require.NoError(t, err)
	assert.Equal(t, "0", state)
}

func TestNVMLNoFans(t *testing.T) {
	device := newFakeDevice()
	device.fanSpeeds = nil
	n := newTestNVML(device)

	_, err := n.Assign(FanControlState, 1)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrOracleCall))

	_, err = n.Query(FanControlState)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrOracleCall))

	_, err = n.Assign(FanSpeedAttribute(""), 42)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrOracleCall))
	assert.Empty(t, device.setSpeeds)
}

func TestNVMLAssignFailure(t *testing.T) {
	device := newFakeDevice()
	device.setRet = nvml.ERROR_NO_PERMISSION
	n := newTestNVML(device)

	_, err := n.Assign(FanSpeedAttribute(""), 72)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrOracleCall))

	_, err = n.Assign(Temperature, 1)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrUnsupported))
}

func TestPCIePercent(t *testing.T) {
	assert.Equal(t, 0, pciePercent(1000, 0, 16))
	assert.Equal(t, 100, pciePercent(50_000_000, 3, 1))
	assert.Equal(t, 50, pciePercent(985*16*500, 3, 16))
}
