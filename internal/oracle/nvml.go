package oracle

import (
	"fmt"
	"strconv"
	"sync"

	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const bytesPerMiB = 1024 * 1024

// Transfer rate per PCIe generation in MT/s, as nvidia-settings reports it.
var pcieTransferRate = map[int]int{
	1: 2500,
	2: 5000,
	3: 8000,
	4: 16000,
	5: 32000,
	6: 64000,
}

// Usable bandwidth per lane and generation in MB/s.
var pcieLaneBandwidth = map[int]int{
	1: 250,
	2: 500,
	3: 985,
	4: 1969,
	5: 3938,
	6: 7877,
}

// nvmlDevice is the part of nvml.Device the oracle uses.
type nvmlDevice interface {
	GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return)
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
	GetEncoderUtilization() (uint32, uint32, nvml.Return)
	GetDecoderUtilization() (uint32, uint32, nvml.Return)
	GetPcieThroughput(nvml.PcieUtilCounter) (uint32, nvml.Return)
	GetClockInfo(nvml.ClockType) (uint32, nvml.Return)
	GetMemoryInfo() (nvml.Memory, nvml.Return)
	GetNumFans() (int, nvml.Return)
	GetFanSpeed_v2(int) (uint32, nvml.Return)
	GetTargetFanSpeed(int) (int, nvml.Return)
	GetFanControlPolicy_v2(int) (nvml.FanControlPolicy, nvml.Return)
	SetFanSpeed_v2(int, int) nvml.Return
	SetDefaultFanSpeed_v2(int) nvml.Return
	GetCurrPcieLinkGeneration() (int, nvml.Return)
	GetMaxPcieLinkGeneration() (int, nvml.Return)
	GetCurrPcieLinkWidth() (int, nvml.Return)
	GetMaxPcieLinkWidth() (int, nvml.Return)
	GetNumGpuCores() (int, nvml.Return)
}

// NVML is an Oracle that answers nvidia-settings attribute names from the
// NVML library. It formats every value the way nvidia-settings would so
// callers parse a single dialect.
type NVML struct {
	device        nvmlDevice
	driverVersion func() (string, nvml.Return)
	shutdown      func() nvml.Return
	mu            sync.Mutex
}

// NewNVML initializes NVML and binds the first GPU.
func NewNVML() (*NVML, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrNVMLInit, newNVMLError(ret))
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if !IsNVMLSuccess(ret) {
		nvml.Shutdown()
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	if name, ret := device.GetName(); IsNVMLSuccess(ret) {
		logger.Info().Msgf("Detected GPU: %v", name)
	}

	return newNVML(device, nvml.SystemGetDriverVersion, nvml.Shutdown), nil
}

func newNVML(device nvmlDevice, driverVersion func() (string, nvml.Return), shutdown func() nvml.Return) *NVML {
	return &NVML{
		device:        device,
		driverVersion: driverVersion,
		shutdown:      shutdown,
	}
}

func (n *NVML) Query(attr Attribute) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	value, ret := n.query(attr)
	if !IsNVMLSuccess(ret) {
		return "", n.wrap(attr, ret)
	}

	return value, nil
}

//nolint:cyclop // one case per attribute
func (n *NVML) query(attr Attribute) (string, nvml.Return) {
	switch attr {
	case Temperature:
		temp, ret := n.device.GetTemperature(nvml.TEMPERATURE_GPU)
		return strconv.Itoa(int(temp)), ret
	case Utilization:
		return n.utilization()
	case ClockFreqs:
		graphics, ret := n.device.GetClockInfo(nvml.CLOCK_GRAPHICS)
		if !IsNVMLSuccess(ret) {
			return "", ret
		}
		memory, ret := n.device.GetClockInfo(nvml.CLOCK_MEM)
		return fmt.Sprintf("%d,%d", graphics, memory), ret
	case UsedMemory, TotalMemory:
		memory, ret := n.device.GetMemoryInfo()
		if attr == TotalMemory {
			return strconv.FormatUint(memory.Total/bytesPerMiB, 10), ret
		}
		return strconv.FormatUint(memory.Used/bytesPerMiB, 10), ret
	case PCIeCurrentWidth:
		width, ret := n.device.GetCurrPcieLinkWidth()
		return strconv.Itoa(width), ret
	case PCIeMaxWidth:
		width, ret := n.device.GetMaxPcieLinkWidth()
		return strconv.Itoa(width), ret
	case PCIeGen:
		gen, ret := n.device.GetMaxPcieLinkGeneration()
		return strconv.Itoa(gen), ret
	case PCIeCurrentSpeed:
		gen, ret := n.device.GetCurrPcieLinkGeneration()
		return strconv.Itoa(pcieTransferRate[gen]), ret
	case PCIeMaxSpeed:
		gen, ret := n.device.GetMaxPcieLinkGeneration()
		return strconv.Itoa(pcieTransferRate[gen]), ret
	case CUDACores:
		cores, ret := n.device.GetNumGpuCores()
		return strconv.Itoa(cores), ret
	case DriverVersion:
		return n.driverVersion()
	case FanControlState:
		return n.controlState()
	default:
		return "", nvml.ERROR_NOT_SUPPORTED
	}
}

func (n *NVML) utilization() (string, nvml.Return) {
	rates, ret := n.device.GetUtilizationRates()
	if !IsNVMLSuccess(ret) {
		return "", ret
	}

	encoder, _, ret := n.device.GetEncoderUtilization()
	if !IsNVMLSuccess(ret) {
		return "", ret
	}

	decoder, _, ret := n.device.GetDecoderUtilization()
	if !IsNVMLSuccess(ret) {
		return "", ret
	}

	pcie, ret := n.pcieUtilization()
	if !IsNVMLSuccess(ret) {
		return "", ret
	}

	return fmt.Sprintf("graphics=%d, memory=%d, video=%d, PCIe=%d",
		rates.Gpu, rates.Memory, max(encoder, decoder), pcie), nvml.SUCCESS
}

// pcieUtilization estimates link utilization as the share of the current
// link bandwidth used by tx+rx throughput.
func (n *NVML) pcieUtilization() (int, nvml.Return) {
	tx, ret := n.device.GetPcieThroughput(nvml.PCIE_UTIL_TX_BYTES)
	if !IsNVMLSuccess(ret) {
		return 0, ret
	}

	rx, ret := n.device.GetPcieThroughput(nvml.PCIE_UTIL_RX_BYTES)
	if !IsNVMLSuccess(ret) {
		return 0, ret
	}

	gen, ret := n.device.GetCurrPcieLinkGeneration()
	if !IsNVMLSuccess(ret) {
		return 0, ret
	}

	width, ret := n.device.GetCurrPcieLinkWidth()
	if !IsNVMLSuccess(ret) {
		return 0, ret
	}

	return pciePercent(int(tx)+int(rx), gen, width), nvml.SUCCESS
}

func pciePercent(throughputKBps, gen, width int) int {
	capacity := pcieLaneBandwidth[gen] * width * 1000
	if capacity <= 0 {
		return 0
	}

	return min(throughputKBps*100/capacity, 100)
}

func (n *NVML) Assign(attr Attribute, value int) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var (
		confirmed int
		ret       nvml.Return
	)
	switch {
	case attr == FanControlState:
		confirmed, ret = value, n.setControlState(value)
	case attr.Target == TargetFan:
		confirmed, ret = n.setFanSpeed(value)
	default:
		ret = nvml.ERROR_NOT_SUPPORTED
	}

	if !IsNVMLSuccess(ret) {
		return "", n.wrap(attr, ret)
	}

	return fmt.Sprintf("Attribute '%s' (nvml%s) assigned value %d.", attr.Name, bracket(attr.Target), confirmed), nil
}

func bracket(t Target) string {
	if t == TargetScreen {
		return ""
	}

	return "[" + t.String() + "]"
}

// fanCount returns the number of fans. A GPU without fans cannot be
// controlled, which is reported as ERROR_NOT_FOUND.
func (n *NVML) fanCount() (int, nvml.Return) {
	count, ret := n.device.GetNumFans()
	if !IsNVMLSuccess(ret) {
		return 0, ret
	}
	if count <= 0 {
		return 0, nvml.ERROR_NOT_FOUND
	}

	return count, nvml.SUCCESS
}

// controlState reports "1" when every fan runs under the manual policy.
func (n *NVML) controlState() (string, nvml.Return) {
	count, ret := n.fanCount()
	if !IsNVMLSuccess(ret) {
		return "", ret
	}

	for i := 0; i < count; i++ {
		policy, ret := n.device.GetFanControlPolicy_v2(i)
		if !IsNVMLSuccess(ret) {
			return "", ret
		}
		if policy != nvml.FAN_POLICY_MANUAL {
			return "0", nvml.SUCCESS
		}
	}

	return "1", nvml.SUCCESS
}

// setFanSpeed commands speed on every fan and returns the target speed the
// device reports back. When fans disagree the first deviating target wins.
func (n *NVML) setFanSpeed(speed int) (int, nvml.Return) {
	count, ret := n.fanCount()
	if !IsNVMLSuccess(ret) {
		return 0, ret
	}

	for i := 0; i < count; i++ {
		if ret := n.device.SetFanSpeed_v2(i, speed); !IsNVMLSuccess(ret) {
			return 0, ret
		}
	}

	confirmed := speed
	for i := 0; i < count; i++ {
		target, ret := n.device.GetTargetFanSpeed(i)
		if !IsNVMLSuccess(ret) {
			return 0, ret
		}
		if target != speed {
			confirmed = target
			break
		}
	}

	return confirmed, nvml.SUCCESS
}

// setControlState switches between manual (1) and automatic (0) fan control.
// Manual control is taken by pinning every fan at its current speed.
func (n *NVML) setControlState(state int) nvml.Return {
	count, ret := n.fanCount()
	if !IsNVMLSuccess(ret) {
		return ret
	}

	for i := 0; i < count; i++ {
		if state == 0 {
			if ret := n.device.SetDefaultFanSpeed_v2(i); !IsNVMLSuccess(ret) {
				return ret
			}
			continue
		}

		current, ret := n.device.GetFanSpeed_v2(i)
		if !IsNVMLSuccess(ret) {
			return ret
		}
		if ret := n.device.SetFanSpeed_v2(i, int(current)); !IsNVMLSuccess(ret) {
			return ret
		}
	}

	return nvml.SUCCESS
}

func (*NVML) wrap(attr Attribute, ret nvml.Return) error {
	errFactory := errors.New()

	if ret == nvml.ERROR_NOT_SUPPORTED {
		return errFactory.WithData(ErrUnsupported, attr.String())
	}

	return errFactory.Wrap(errors.ErrOracleCall, newNVMLError(ret)).WithMessage("nvml " + attr.String())
}

func (n *NVML) Close() error {
	if ret := n.shutdown(); !IsNVMLSuccess(ret) {
		return errors.New().Wrap(errors.ErrShutdownFailed, newNVMLError(ret))
	}

	return nil
}
