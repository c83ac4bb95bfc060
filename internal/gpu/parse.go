package gpu

import (
	"strconv"
	"strings"

	"codeberg.org/mutker/nvfanmon/internal/errors"
)

func parseInt(text string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, errors.New().WithData(ErrParseInteger, text)
	}

	return value, nil
}

// parseUtilization parses "graphics=4, memory=2, video=0, PCIe=0".
func parseUtilization(text string) (Utilization, error) {
	errFactory := errors.New()
	fields := make(map[string]int, 4)

	for _, part := range strings.Split(text, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return Utilization{}, errFactory.WithData(ErrParseUtilization, text)
		}

		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return Utilization{}, errFactory.WithData(ErrParseUtilization, text)
		}

		fields[strings.ToLower(strings.TrimSpace(key))] = n
	}

	var u Utilization
	for key, dst := range map[string]*int{
		"graphics": &u.Graphics,
		"memory":   &u.Memory,
		"video":    &u.Video,
		"pcie":     &u.PCIe,
	} {
		n, ok := fields[key]
		if !ok {
			return Utilization{}, errFactory.WithData(ErrParseUtilization, text)
		}
		*dst = n
	}

	return u, nil
}

// parseClockFreqs parses "graphics,memory" in MHz.
func parseClockFreqs(text string) (ClockFreqs, error) {
	graphics, memory, ok := strings.Cut(strings.TrimSpace(text), ",")
	if !ok {
		return ClockFreqs{}, errors.New().WithData(ErrParseClocks, text)
	}

	g, err := strconv.Atoi(strings.TrimSpace(graphics))
	if err != nil {
		return ClockFreqs{}, errors.New().WithData(ErrParseClocks, text)
	}

	m, err := strconv.Atoi(strings.TrimSpace(memory))
	if err != nil {
		return ClockFreqs{}, errors.New().WithData(ErrParseClocks, text)
	}

	return ClockFreqs{Graphics: g, Memory: m}, nil
}

// parseAssigned extracts the effective value from an assignment
// confirmation such as "  Attribute 'GPUCurrentFanSpeed' (host:0[fan:0])
// assigned value 70.". The value is the last word, without the full stop.
func parseAssigned(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, errors.New().WithData(ErrParseAssignment, text)
	}

	last := strings.TrimSuffix(fields[len(fields)-1], ".")

	value, err := strconv.Atoi(last)
	if err != nil {
		return 0, errors.New().WithData(ErrParseAssignment, text)
	}

	return value, nil
}

func parseMode(text string) (bool, error) {
	switch strings.TrimSpace(text) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, errors.New().WithData(ErrParseMode, text)
	}
}
