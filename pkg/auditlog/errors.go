package auditlog

import "errors"

var (
	// ErrInvalidEntry indicates a record is missing required attribution fields.
	ErrInvalidEntry = errors.New("auditlog.invalid_entry")

	// ErrStorageFailed wraps storage-layer write or query failures.
	ErrStorageFailed = errors.New("auditlog.storage_failed")
)
