package docstore

import (
	"context"
	"time"
)

// Snapshot is one observed state of a document. A document that does not
// exist (yet) is reported as Exists: false, never as an error; newly
// provisioned tenants routinely have no flag documents.
type Snapshot struct {
	Path      string
	Exists    bool
	Data      map[string]any
	UpdatedAt time.Time
}

// Subscription is a live stream of document snapshots.
type Subscription interface {
	// Snapshots returns the stream. The current document state is delivered
	// first, then one snapshot per observed change. The channel is closed
	// when the subscription ends, whether by Unsubscribe or by a stream
	// failure.
	Snapshots() <-chan Snapshot

	// Err reports why the stream ended. Nil while the stream is live and
	// after a clean Unsubscribe.
	Err() error

	// Unsubscribe stops the stream. No snapshots are delivered afterwards.
	// Safe to call multiple times.
	Unsubscribe()
}

// Store is the document-storage contract the flag store depends on: live
// subscriptions for reads, merge-semantics writes. Implementations map the
// slash-separated "collection/documentID" path onto their own addressing.
type Store interface {
	// Get reads the current state of a document.
	Get(ctx context.Context, path string) (Snapshot, error)

	// SetMerge merges the fields into the document, creating it if absent.
	// Nested maps merge recursively; scalar and slice values replace.
	SetMerge(ctx context.Context, path string, fields map[string]any) error

	// Subscribe opens a live snapshot stream for the document.
	Subscribe(ctx context.Context, path string) (Subscription, error)
}
