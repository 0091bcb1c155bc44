package auditlog

import (
	"fmt"
	"time"
)

// Change classifies what a flag mutation did.
type Change string

const (
	// ChangeEnabled records a flag turning on (including first creation as on).
	ChangeEnabled Change = "enabled"
	// ChangeDisabled records a flag turning off.
	ChangeDisabled Change = "disabled"
	// ChangeModified records a write that did not alter the enabled state,
	// e.g. re-toggling to the same value or editing metadata.
	ChangeModified Change = "modified"
)

// Entry is one immutable audit record of a flag mutation. Entries are only
// ever appended; history is never rewritten.
type Entry struct {
	ID        string         `json:"id" bson:"_id"`
	TenantID  string         `json:"tenant_id" bson:"tenant_id"`
	ActorID   string         `json:"actor_id" bson:"actor_id"`
	ActionID  string         `json:"action_id" bson:"action_id"`
	Change    Change         `json:"change" bson:"change"`
	Previous  map[string]any `json:"previous,omitempty" bson:"previous,omitempty"`
	New       map[string]any `json:"new,omitempty" bson:"new,omitempty"`
	Reason    string         `json:"reason,omitempty" bson:"reason,omitempty"`
	UserAgent string         `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
}

// Validate checks the fields every record must carry to be attributable.
func (e *Entry) Validate() error {
	switch {
	case e.TenantID == "":
		return fmt.Errorf("%w: tenant id is required", ErrInvalidEntry)
	case e.ActorID == "":
		return fmt.Errorf("%w: actor id is required", ErrInvalidEntry)
	case e.ActionID == "":
		return fmt.Errorf("%w: action id is required", ErrInvalidEntry)
	}
	return nil
}

// Criteria filters audit queries. Zero values mean "any".
type Criteria struct {
	TenantID string
	ActorID  string
	ActionID string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// EntryOption decorates an Entry with optional context at record time.
type EntryOption func(*Entry)

// WithReason attaches the human-supplied justification for the change.
func WithReason(reason string) EntryOption {
	return func(e *Entry) { e.Reason = reason }
}

// WithUserAgent attaches the caller's user agent string.
func WithUserAgent(ua string) EntryOption {
	return func(e *Entry) { e.UserAgent = ua }
}
