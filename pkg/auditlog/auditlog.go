package auditlog

import "context"

// Writer appends audit records. Callers treat writes as best-effort
// observability: a failed Record must never roll back or block the flag
// mutation it describes.
type Writer interface {
	Record(ctx context.Context, entry Entry) error
}

// Reader queries recorded audit history.
type Reader interface {
	Find(ctx context.Context, criteria Criteria) ([]Entry, error)
}
