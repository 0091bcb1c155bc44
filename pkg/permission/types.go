package permission

import (
	"time"

	"github.com/fieldline/fieldline/pkg/roles"
)

// Identity carries the session attributes every evaluation is scoped to.
// Role is trusted input supplied by the auth layer, not derived here.
type Identity struct {
	UserID   string
	TenantID string
	Role     roles.Role
}

// Source names the precedence layer that produced a decision.
type Source string

const (
	SourceUserOverride Source = "user_override"
	SourceTenantFlag   Source = "tenant_flag"
	SourceRoleDefault  Source = "role_default"
	SourceContextRule  Source = "context_rule"
	// SourceCache marks decisions replayed from a persisted offline snapshot,
	// where the originating layer is no longer known.
	SourceCache Source = "cache"
	SourceNone  Source = "none"
)

// Decision is the full result of evaluating one action: the boolean outcome
// plus provenance for diagnostics and admin UI.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Source  Source `json:"source"`
	Reason  string `json:"reason,omitempty"`
}

// RuleContext carries resource attributes for context rules, e.g. the owner
// of the task being completed. Shape is caller-defined; rules defensively
// check types and abstain on mismatch.
type RuleContext map[string]any

// FlagMetadata is admin-UI annotation on a tenant flag. It is never consulted
// during evaluation.
type FlagMetadata struct {
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Risk        string `json:"risk,omitempty"`
}

// TenantFlag is a tenant-wide toggle for one action identifier, with optional
// role and user targeting and an optional absolute expiry.
type TenantFlag struct {
	Enabled       bool         `json:"enabled"`
	TargetedRoles []roles.Role `json:"targeted_roles,omitempty"`
	TargetedUsers []string     `json:"targeted_users,omitempty"`
	ExcludedUsers []string     `json:"excluded_users,omitempty"`
	EnabledBy     string       `json:"enabled_by,omitempty"`
	EnabledAt     time.Time    `json:"enabled_at,omitzero"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	Metadata      FlagMetadata `json:"metadata,omitzero"`
}

// UserOverride is a per-(user,tenant) flag for one action identifier. It is
// the highest-precedence layer and carries no expiry: overrides stand until
// explicitly revoked by an admin.
type UserOverride struct {
	Enabled   bool      `json:"enabled"`
	GrantedBy string    `json:"granted_by,omitempty"`
	GrantedAt time.Time `json:"granted_at,omitzero"`
}

// Snapshot is a point-in-time view of everything an Evaluator consults. The
// flag store builds a fresh Snapshot (and a fresh Evaluator) on every backing
// document update so evaluation never reads half-updated state.
type Snapshot struct {
	// TenantFlags keyed by action identifier.
	TenantFlags map[string]TenantFlag

	// UserOverrides keyed by action identifier, scoped to the session user.
	UserOverrides map[string]UserOverride

	// RoleDefaults is the tenant-configured default table. Nil means the
	// hardcoded roles.Defaults() table applies.
	RoleDefaults roles.DefaultsSet
}
