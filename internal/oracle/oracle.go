package oracle

import "codeberg.org/mutker/nvfanmon/internal/errors"

// Options select and configure an Oracle backend.
type Options struct {
	Backend string
	Binary  string
	Display string
}

// New opens the oracle named by opts.Backend.
func New(opts Options) (Oracle, error) {
	switch opts.Backend {
	case BackendSettings, "":
		return NewSettings(opts.Binary, opts.Display, nil), nil
	case BackendNVML:
		n, err := NewNVML()
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, errors.New().WithData(ErrUnknownBackend, opts.Backend)
	}
}
