package oracle

import (
	"codeberg.org/mutker/nvfanmon/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	ErrUnsupported    = errors.ErrorCode("oracle_unsupported_attribute")
	ErrUnknownBackend = errors.ErrorCode("oracle_unknown_backend")
	ErrNVMLInit       = errors.ErrorCode("oracle_nvml_init_failed")
	ErrDeviceNotFound = errors.ErrorCode("oracle_device_not_found")
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
