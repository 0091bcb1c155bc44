package flagstore

import "errors"

var (
	// ErrNoSession is returned when mutating operations run without an
	// authenticated user and tenant.
	ErrNoSession = errors.New("flagstore.no_session")

	// ErrPermissionDenied is returned when the caller lacks the permission
	// that gates flag management.
	ErrPermissionDenied = errors.New("flagstore.permission_denied")

	// ErrInvalidAction is returned for an action identifier that cannot be
	// stored as a document field name.
	ErrInvalidAction = errors.New("flagstore.invalid_action")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("flagstore.store_closed")

	// ErrToggleFailed wraps storage failures while persisting a flag change.
	ErrToggleFailed = errors.New("flagstore.toggle_failed")

	// ErrSnapshotCorrupt indicates the persisted offline snapshot could not
	// be decoded. Treated as a cache miss, never fatal.
	ErrSnapshotCorrupt = errors.New("flagstore.snapshot_corrupt")
)
