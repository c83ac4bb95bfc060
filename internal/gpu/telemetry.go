package gpu

import (
	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/logger"
	"codeberg.org/mutker/nvfanmon/internal/oracle"
)

// Telemetry turns oracle responses into typed readings. Every failure is
// reported with errors.ErrTelemetry.
type Telemetry struct {
	oracle oracle.Oracle
}

func NewTelemetry(o oracle.Oracle) *Telemetry {
	return &Telemetry{oracle: o}
}

func (t *Telemetry) query(attr oracle.Attribute) (string, error) {
	text, err := t.oracle.Query(attr)
	if err != nil {
		return "", errors.New().Wrap(errors.ErrTelemetry, err)
	}

	return text, nil
}

func (t *Telemetry) queryInt(attr oracle.Attribute) (int, error) {
	text, err := t.query(attr)
	if err != nil {
		return 0, err
	}

	value, err := parseInt(text)
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrTelemetry, err).WithMessage("read " + attr.Name)
	}

	return value, nil
}

func (t *Telemetry) QueryTemperature() (int, error) {
	return t.queryInt(oracle.Temperature)
}

func (t *Telemetry) QueryUtilization() (Utilization, error) {
	text, err := t.query(oracle.Utilization)
	if err != nil {
		return Utilization{}, err
	}

	u, err := parseUtilization(text)
	if err != nil {
		return Utilization{}, errors.New().Wrap(errors.ErrTelemetry, err)
	}

	return u, nil
}

func (t *Telemetry) QueryClockFreqs() (ClockFreqs, error) {
	text, err := t.query(oracle.ClockFreqs)
	if err != nil {
		return ClockFreqs{}, err
	}

	c, err := parseClockFreqs(text)
	if err != nil {
		return ClockFreqs{}, errors.New().Wrap(errors.ErrTelemetry, err)
	}

	return c, nil
}

// QueryFanRPM returns FanRPMUnavailable when the backend has no tachometer
// reading. Any other failure is an error.
func (t *Telemetry) QueryFanRPM() (int, error) {
	text, err := t.oracle.Query(oracle.FanRPM)
	if errors.HasCode(err, oracle.ErrUnsupported) {
		return FanRPMUnavailable, nil
	}
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrTelemetry, err)
	}

	rpm, err := parseInt(text)
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrTelemetry, err).WithMessage("read " + oracle.FanRPM.Name)
	}

	return rpm, nil
}

func (t *Telemetry) QueryUsedMemory() (int, error) {
	return t.queryInt(oracle.UsedMemory)
}

func (t *Telemetry) QueryPCIeLink() (PCIeLink, error) {
	width, err := t.queryInt(oracle.PCIeCurrentWidth)
	if err != nil {
		return PCIeLink{}, err
	}

	speed, err := t.queryInt(oracle.PCIeCurrentSpeed)
	if err != nil {
		return PCIeLink{}, err
	}

	return PCIeLink{Width: width, Speed: speed}, nil
}

// Read collects a full Reading. Temperature is queried first; it is the only
// value the controller acts on.
func (t *Telemetry) Read() (Reading, error) {
	var (
		r   Reading
		err error
	)

	if r.Temperature, err = t.QueryTemperature(); err != nil {
		return Reading{}, err
	}
	if r.Utilization, err = t.QueryUtilization(); err != nil {
		return Reading{}, err
	}
	if r.Clocks, err = t.QueryClockFreqs(); err != nil {
		return Reading{}, err
	}
	if r.FanRPM, err = t.QueryFanRPM(); err != nil {
		return Reading{}, err
	}
	if r.PCIe, err = t.QueryPCIeLink(); err != nil {
		return Reading{}, err
	}
	if r.UsedMemoryMB, err = t.QueryUsedMemory(); err != nil {
		return Reading{}, err
	}

	logger.Debug().
		Int("temperature", r.Temperature).
		Int("graphics", r.Utilization.Graphics).
		Int("fan_rpm", r.FanRPM).
		Msg("Telemetry read")

	return r, nil
}

// QueryStaticInfo reads the values shown once per session.
func (t *Telemetry) QueryStaticInfo() (StaticInfo, error) {
	var (
		info StaticInfo
		err  error
	)

	if info.DriverVersion, err = t.query(oracle.DriverVersion); err != nil {
		return StaticInfo{}, err
	}
	if info.PCIeGeneration, err = t.queryInt(oracle.PCIeGen); err != nil {
		return StaticInfo{}, err
	}
	if info.MaxLinkWidth, err = t.queryInt(oracle.PCIeMaxWidth); err != nil {
		return StaticInfo{}, err
	}
	if info.MaxLinkSpeed, err = t.queryInt(oracle.PCIeMaxSpeed); err != nil {
		return StaticInfo{}, err
	}
	if info.TotalMemoryMB, err = t.queryInt(oracle.TotalMemory); err != nil {
		return StaticInfo{}, err
	}
	if info.CUDACores, err = t.queryInt(oracle.CUDACores); err != nil {
		return StaticInfo{}, err
	}

	return info, nil
}
