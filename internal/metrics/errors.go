package metrics

import "codeberg.org/mutker/nvfanmon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDSN    = errors.ErrorCode("metrics_invalid_dsn")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("metrics_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("metrics_schema_validation_failed")
	ErrSchemaVersionMismatch  = errors.ErrorCode("metrics_schema_version_mismatch")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitHistory
	ErrStorageClose = errors.ErrCloseHistory
	ErrQueryFailed  = errors.ErrorCode("metrics_query_failed")

	// Collection Errors
	ErrMetricsCollection = errors.ErrRecordHistory
	ErrInvalidMetrics    = errors.ErrorCode("metrics_invalid_metrics")

	// Operation Errors
	ErrOperationCanceled = errors.ErrorCode("metrics_operation_canceled")
)
