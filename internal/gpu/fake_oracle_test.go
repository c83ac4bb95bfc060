package gpu_test

import (
	"fmt"

	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/oracle"
)

// fakeOracle answers queries from a table and records assignments.
type fakeOracle struct {
	values   map[oracle.Attribute]string
	failures map[oracle.Attribute]error
	assigned []string

	// assignReply overrides the confirmation text for fan speed assignments.
	assignReply func(value int) string
	assignErr   error
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		values: map[oracle.Attribute]string{
			oracle.Temperature:      "64",
			oracle.Utilization:      "graphics=4, memory=2, video=0, PCIe=1",
			oracle.ClockFreqs:       "1006,2505",
			oracle.FanRPM:           "1620",
			oracle.UsedMemory:       "512",
			oracle.PCIeCurrentWidth: "16",
			oracle.PCIeCurrentSpeed: "2500",
			oracle.DriverVersion:    "535.129.03",
			oracle.PCIeGen:          "3",
			oracle.PCIeMaxWidth:     "16",
			oracle.PCIeMaxSpeed:     "8000",
			oracle.TotalMemory:      "8192",
			oracle.CUDACores:        "2560",
			oracle.FanControlState:  "0",
		},
		failures: map[oracle.Attribute]error{},
	}
}

func (f *fakeOracle) Query(attr oracle.Attribute) (string, error) {
	if err := f.failures[attr]; err != nil {
		return "", err
	}

	return f.values[attr], nil
}

func (f *fakeOracle) Assign(attr oracle.Attribute, value int) (string, error) {
	f.assigned = append(f.assigned, fmt.Sprintf("%s=%d", attr.Name, value))

	if f.assignErr != nil {
		return "", f.assignErr
	}

	if attr == oracle.FanControlState {
		f.values[attr] = fmt.Sprint(value)
	} else if f.assignReply != nil {
		return f.assignReply(value), nil
	}

	return fmt.Sprintf("\n  Attribute '%s' (host:0[%s]) assigned value %d.\n", attr.Name, attr.Target, value), nil
}

func (*fakeOracle) Close() error { return nil }

var errCallFailed = errors.New().WithMessage(errors.ErrOracleCall, "exit status 1")
