package roles

import (
	"errors"
	"fmt"
	"slices"
)

// Role identifies a membership level within a tenant. Roles are assigned at
// invite-acceptance time and can only be changed by a higher-privileged role.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleManager    Role = "manager"
	RoleTeamMember Role = "team_member"
	RoleClient     Role = "client"
)

// All returns every known role, most privileged first.
func All() []Role {
	return []Role{RoleOwner, RoleManager, RoleTeamMember, RoleClient}
}

// Valid reports whether the role is one of the known membership levels.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleTeamMember, RoleClient:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Parse converts a raw string into a Role.
// It returns ErrUnknownRole for anything outside the known set.
func Parse(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", errors.Join(ErrUnknownRole, fmt.Errorf("role %q", s))
	}
	return r, nil
}

// DefaultsSet maps each role to the action identifiers granted
// unconditionally to members of that role.
type DefaultsSet map[Role][]string

// Granted reports whether the set grants the action to the role.
func (s DefaultsSet) Granted(role Role, action string) bool {
	return slices.Contains(s[role], action)
}

// Actions returns a copy of the action identifiers granted to the role.
func (s DefaultsSet) Actions(role Role) []string {
	return slices.Clone(s[role])
}

// Clone returns a deep copy of the set.
func (s DefaultsSet) Clone() DefaultsSet {
	out := make(DefaultsSet, len(s))
	for role, actions := range s {
		out[role] = slices.Clone(actions)
	}
	return out
}
