package permission

import "maps"

// Static is a Checker backed by a flat action → boolean map, used when live
// flag data is unavailable and a persisted offline snapshot is fresh enough
// to serve. Decisions report SourceCache because the originating layer is no
// longer known; actions absent from the snapshot deny.
type Static struct {
	perms map[string]bool
}

var _ Checker = (*Static)(nil)

// NewStatic creates a Static checker over a copy of the given permission map.
func NewStatic(perms map[string]bool) *Static {
	return &Static{perms: maps.Clone(perms)}
}

func (s *Static) Can(action string) bool {
	return s.perms[action]
}

// CanContext ignores the rule context: contextual decisions are not
// reconstructable from a flat snapshot, so only the recorded outcome applies.
func (s *Static) CanContext(action string, _ RuleContext) bool {
	return s.perms[action]
}

func (s *Static) CanEach(actions ...string) map[string]bool {
	out := make(map[string]bool, len(actions))
	for _, action := range actions {
		out[action] = s.perms[action]
	}
	return out
}

func (s *Static) Evaluate(action string, _ RuleContext) Decision {
	allowed, known := s.perms[action]
	if !known {
		return Decision{Allowed: false, Source: SourceNone, Reason: "no matching permission rule"}
	}
	return Decision{Allowed: allowed, Source: SourceCache, Reason: "cached offline decision"}
}

func (s *Static) AllPermissions() map[string]bool {
	out := maps.Clone(s.perms)
	if out == nil {
		out = make(map[string]bool)
	}
	return out
}

// ClearCache is a no-op: the snapshot itself is the cache.
func (s *Static) ClearCache() {}
