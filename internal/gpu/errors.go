package gpu

import "codeberg.org/mutker/nvfanmon/internal/errors"

const (
	// Parse errors
	ErrParseInteger     = errors.ErrorCode("gpu_parse_integer_failed")
	ErrParseUtilization = errors.ErrorCode("gpu_parse_utilization_failed")
	ErrParseClocks      = errors.ErrorCode("gpu_parse_clocks_failed")
	ErrParseAssignment  = errors.ErrorCode("gpu_parse_assignment_failed")
	ErrParseMode        = errors.ErrorCode("gpu_parse_mode_failed")

	// Fan control errors
	ErrSpeedOutOfBounds = errors.ErrorCode("gpu_speed_out_of_bounds")
	ErrSpeedMismatch    = errors.ErrorCode("gpu_speed_mismatch")
)
