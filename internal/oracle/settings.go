package oracle

import (
	"strconv"
	"strings"

	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/exec"
	"codeberg.org/mutker/nvfanmon/internal/logger"
)

const (
	DefaultBinary  = "nvidia-settings"
	DefaultDisplay = "localhost:0"
)

// Settings is an Oracle backed by the nvidia-settings binary.
type Settings struct {
	binary  string
	display string
	run     exec.Runner
}

// NewSettings returns a Settings oracle. A nil run uses exec.Command.
func NewSettings(binary, display string, run exec.Runner) *Settings {
	if binary == "" {
		binary = DefaultBinary
	}
	if display == "" {
		display = DefaultDisplay
	}
	if run == nil {
		run = exec.Command
	}

	return &Settings{
		binary:  binary,
		display: display,
		run:     run,
	}
}

// path renders attr as an nvidia-settings attribute path, e.g.
// localhost:0[gpu:0]/GPUUtilization or localhost:0.0/PCIEGen.
func (s *Settings) path(attr Attribute) string {
	if attr.Target == TargetScreen {
		return s.display + ".0/" + attr.Name
	}

	return s.display + attr.String()
}

func (s *Settings) Query(attr Attribute) (string, error) {
	errFactory := errors.New()
	path := s.path(attr)

	out, err := s.run(s.binary, "--query", path, "--terse")
	if err != nil {
		return "", errFactory.Wrap(errors.ErrOracleCall, err).WithMessage("query " + path)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", errFactory.WithMessage(errors.ErrOracleOutput, "empty response for "+path)
	}

	logger.Debug().Str("attribute", path).Str("value", out).Msg("Oracle query")

	return out, nil
}

func (s *Settings) Assign(attr Attribute, value int) (string, error) {
	errFactory := errors.New()
	assignment := s.path(attr) + "=" + strconv.Itoa(value)

	out, err := s.run(s.binary, "--assign", assignment)
	if err != nil {
		return "", errFactory.Wrap(errors.ErrOracleCall, err).WithMessage("assign " + assignment)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", errFactory.WithMessage(errors.ErrOracleOutput, "empty response for "+assignment)
	}

	logger.Debug().Str("assignment", assignment).Str("response", out).Msg("Oracle assign")

	return out, nil
}

func (*Settings) Close() error {
	return nil
}
