package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidBounds   ErrorCode = "invalid_speed_bounds"
	ErrTargetTooHigh   ErrorCode = "target_temperature_too_high"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"
	ErrOpenLogFile     ErrorCode = "open_log_file_failed"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Control loop errors
	ErrModeEntry ErrorCode = "mode_entry_failed"
	ErrTelemetry ErrorCode = "telemetry_failed"
	ErrActuator  ErrorCode = "actuator_failed"
	ErrRender    ErrorCode = "render_failed"

	// Oracle errors
	ErrOracleCall   ErrorCode = "oracle_call_failed"
	ErrOracleOutput ErrorCode = "oracle_output_invalid"

	// History errors
	ErrInitHistory   ErrorCode = "init_history_failed"
	ErrRecordHistory ErrorCode = "record_history_failed"
	ErrCloseHistory  ErrorCode = "close_history_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:        "Internal error occurred",
	ErrInvalidArgument: "Invalid argument provided",
	ErrUnavailable:     "Service unavailable",
	ErrInvalidConfig:   "Invalid configuration",
	ErrReadConfig:      "Failed to read configuration",
	ErrInvalidInterval: "Invalid interval value",
	ErrInvalidBounds:   "Invalid fan speed bounds",
	ErrTargetTooHigh:   "Target temperature is too high",
	ErrInvalidLogLevel: "Invalid log level",
	ErrOpenLogFile:     "Failed to open log file",
	ErrInitFailed:      "Initialization failed",
	ErrShutdownFailed:  "Shutdown failed",
	ErrAlreadyRunning:  "Another instance is already controlling the fan",
	ErrModeEntry:       "Failed to enter manual fan control mode",
	ErrTelemetry:       "Failed to read GPU telemetry",
	ErrActuator:        "Failed to apply fan command",
	ErrRender:          "Failed to render dashboard",
	ErrOracleCall:      "Oracle call failed",
	ErrOracleOutput:    "Oracle returned unusable output",
	ErrInitHistory:     "Failed to initialize session history",
	ErrRecordHistory:   "Failed to record session history",
	ErrCloseHistory:    "Failed to close session history",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
