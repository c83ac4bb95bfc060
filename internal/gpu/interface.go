package gpu

// TelemetryPort reads sensor values. Any error is fatal for the tick that
// requested the value; no fallback value is ever guessed.
type TelemetryPort interface {
	Read() (Reading, error)
	QueryTemperature() (int, error)
	QueryStaticInfo() (StaticInfo, error)
}

// ActuatorPort commands the fan.
type ActuatorPort interface {
	// SetFanControlMode enables (manual) or disables manual fan control and
	// returns the mode the oracle reports afterwards.
	SetFanControlMode(manual bool) (bool, error)

	// SetSpeed commands requested percent and returns the speed the oracle
	// confirmed.
	SetSpeed(requested int) (int, error)
}

// FanRPMUnavailable is reported when the backend cannot measure fan RPM.
const FanRPMUnavailable = -1

// Domain types
type (
	Utilization struct {
		Graphics int
		Memory   int
		Video    int
		PCIe     int
	}

	// ClockFreqs are current clocks in MHz.
	ClockFreqs struct {
		Graphics int
		Memory   int
	}

	// PCIeLink is the current link state. Speed is in MT/s.
	PCIeLink struct {
		Width int
		Speed int
	}

	// Reading is one tick's worth of telemetry.
	Reading struct {
		Temperature  int
		Utilization  Utilization
		Clocks       ClockFreqs
		FanRPM       int
		PCIe         PCIeLink
		UsedMemoryMB int
	}

	// StaticInfo does not change while the process runs and is queried once.
	StaticInfo struct {
		DriverVersion  string
		PCIeGeneration int
		MaxLinkWidth   int
		MaxLinkSpeed   int
		TotalMemoryMB  int
		CUDACores      int
	}
)
