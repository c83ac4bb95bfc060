package metrics

import "codeberg.org/mutker/nvfanmon/internal/errors"

const (
	// In-memory database; nothing survives the process.
	defaultDSN = ":memory:"
)

type Config struct {
	DSN     string
	Enabled bool
}

func DefaultConfig() Config {
	return Config{
		DSN:     defaultDSN,
		Enabled: true,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Enabled && c.DSN == "" {
		return errFactory.New(ErrInvalidDSN)
	}
	return nil
}
