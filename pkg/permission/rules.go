package permission

import "github.com/fieldline/fieldline/pkg/roles"

// Verdict is the tri-state outcome of a context rule. Abstain means the rule
// does not recognize the action/context combination and contributes nothing;
// it must never be conflated with Deny.
type Verdict int

const (
	Abstain Verdict = iota
	Allow
	Deny
)

// Rule is a pure predicate over the session identity and a resource context.
// Rules must not panic on malformed context; they check shape defensively and
// abstain on mismatch.
type Rule func(id Identity, rc RuleContext) Verdict

// RuleSet maps action identifiers to the rules consulted for them. It is a
// small closed set, not a plugin system; rules only run when the layers above
// them have abstained.
type RuleSet map[string][]Rule

// DefaultRules returns the built-in context rules.
func DefaultRules() RuleSet {
	return RuleSet{
		roles.ActionTaskComplete:   {taskCompletionOwnership},
		roles.ActionTaskDelete:     {taskDeletionCreator},
		roles.ActionClientViewNotes: {clientNotesAssignment},
	}
}

// taskCompletionOwnership allows completing a task the session user owns or
// is assigned to. A context naming an owner or assignee that is someone else
// is a definite deny; a context without either key abstains.
func taskCompletionOwnership(id Identity, rc RuleContext) Verdict {
	owner, ownerOK := stringValue(rc, "task_owner_id")
	assignee, assigneeOK := stringValue(rc, "assignee_id")
	if !ownerOK && !assigneeOK {
		return Abstain
	}
	if (ownerOK && owner == id.UserID) || (assigneeOK && assignee == id.UserID) {
		return Allow
	}
	return Deny
}

// taskDeletionCreator allows deleting only tasks the session user created.
func taskDeletionCreator(id Identity, rc RuleContext) Verdict {
	creator, ok := stringValue(rc, "created_by")
	if !ok {
		return Abstain
	}
	if creator == id.UserID {
		return Allow
	}
	return Deny
}

// clientNotesAssignment allows viewing client notes only when the session
// user appears in the client's assignment list.
func clientNotesAssignment(id Identity, rc RuleContext) Verdict {
	assigned, ok := stringSliceValue(rc, "assigned_user_ids")
	if !ok {
		return Abstain
	}
	for _, userID := range assigned {
		if userID == id.UserID {
			return Allow
		}
	}
	return Deny
}

func stringValue(rc RuleContext, key string) (string, bool) {
	v, ok := rc[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// stringSliceValue tolerates both []string and the []any shape produced by
// JSON and BSON decoding.
func stringSliceValue(rc RuleContext, key string) ([]string, bool) {
	v, ok := rc[key]
	if !ok {
		return nil, false
	}
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
