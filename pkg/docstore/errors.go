package docstore

import "errors"

var (
	// ErrInvalidPath is returned for paths that do not name a document as
	// "collection/documentID".
	ErrInvalidPath = errors.New("docstore.invalid_path")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("docstore.store_closed")

	// ErrReadFailed wraps storage-layer read failures.
	ErrReadFailed = errors.New("docstore.read_failed")

	// ErrWriteFailed wraps storage-layer write failures.
	ErrWriteFailed = errors.New("docstore.write_failed")

	// ErrSubscriptionFailed wraps storage-layer subscription failures.
	ErrSubscriptionFailed = errors.New("docstore.subscription_failed")
)
