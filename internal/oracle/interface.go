// Package oracle talks to the external vendor utility that reports GPU
// telemetry and accepts fan commands. Every call is synchronous and is treated
// by callers as one atomic, non-cancellable unit of work.
package oracle

import "fmt"

// Oracle answers terse textual queries and assignments for named attributes.
type Oracle interface {
	// Query returns the raw textual value of attr.
	Query(attr Attribute) (string, error)

	// Assign sets attr to value and returns the oracle's confirmation text,
	// from which the effective value can be parsed.
	Assign(attr Attribute, value int) (string, error)

	Close() error
}

// Target selects which object of the display an attribute belongs to.
type Target int

const (
	TargetScreen Target = iota
	TargetGPU
	TargetFan
	TargetThermalSensor
)

func (t Target) String() string {
	switch t {
	case TargetGPU:
		return "gpu:0"
	case TargetFan:
		return "fan:0"
	case TargetThermalSensor:
		return "thermalsensor:0"
	default:
		return ""
	}
}

// Attribute is a named sensor or control path.
type Attribute struct {
	Target Target
	Name   string
}

func (a Attribute) String() string {
	if a.Target == TargetScreen {
		return a.Name
	}

	return fmt.Sprintf("[%s]/%s", a.Target, a.Name)
}

// Attributes read every tick.
var (
	Temperature      = Attribute{TargetThermalSensor, "ThermalSensorReading"}
	Utilization      = Attribute{TargetGPU, "GPUUtilization"}
	ClockFreqs       = Attribute{TargetGPU, "GPUCurrentClockFreqs"}
	FanRPM           = Attribute{TargetFan, "GPUCurrentFanSpeedRPM"}
	UsedMemory       = Attribute{TargetGPU, "UsedDedicatedGPUMemory"}
	PCIeCurrentWidth = Attribute{TargetScreen, "PCIECurrentLinkWidth"}
	PCIeCurrentSpeed = Attribute{TargetScreen, "PCIECurrentLinkSpeed"}
)

// Attributes read once at startup.
var (
	DriverVersion = Attribute{TargetScreen, "NvidiaDriverVersion"}
	PCIeGen       = Attribute{TargetScreen, "PCIEGen"}
	PCIeMaxWidth  = Attribute{TargetScreen, "PCIEMaxLinkWidth"}
	PCIeMaxSpeed  = Attribute{TargetScreen, "PCIEMaxLinkSpeed"}
	TotalMemory   = Attribute{TargetGPU, "TotalDedicatedGPUMemory"}
	CUDACores     = Attribute{TargetGPU, "CUDACores"}
)

// Control attributes.
var (
	FanControlState = Attribute{TargetGPU, "GPUFanControlState"}
)

// FanSpeedAttribute returns the fan speed control attribute. Older drivers
// call it GPUCurrentFanSpeed, newer ones GPUTargetFanSpeed.
func FanSpeedAttribute(name string) Attribute {
	if name == "" {
		name = DefaultFanSpeedAttribute
	}

	return Attribute{TargetFan, name}
}

const DefaultFanSpeedAttribute = "GPUCurrentFanSpeed"

// Backend names accepted by New.
const (
	BackendSettings = "nvidia-settings"
	BackendNVML     = "nvml"
)
