package flagstore

import (
	"time"

	"github.com/fieldline/fieldline/pkg/permission"
	"github.com/fieldline/fieldline/pkg/roles"
)

// Document field names for the tenant flag and user override documents.
const (
	fieldFlags        = "flags"
	fieldOverrides    = "overrides"
	fieldRoleDefaults = "role_defaults"
)

// Decoding is deliberately forgiving: flag documents are written by several
// client versions over the years, so unknown fields are ignored and
// malformed values degrade to their zero value instead of failing the whole
// snapshot.

func decodeTenantFlags(data map[string]any) map[string]permission.TenantFlag {
	raw, ok := data[fieldFlags].(map[string]any)
	if !ok {
		return nil
	}

	flags := make(map[string]permission.TenantFlag, len(raw))
	for action, value := range raw {
		doc, ok := value.(map[string]any)
		if !ok || action == "" {
			continue
		}
		flags[action] = permission.TenantFlag{
			Enabled:       asBool(doc["enabled"]),
			TargetedRoles: asRoles(doc["targeted_roles"]),
			TargetedUsers: asStrings(doc["targeted_users"]),
			ExcludedUsers: asStrings(doc["excluded_users"]),
			EnabledBy:     asString(doc["enabled_by"]),
			EnabledAt:     asTime(doc["enabled_at"]),
			ExpiresAt:     asTimePtr(doc["expires_at"]),
			Metadata:      decodeMetadata(doc["metadata"]),
		}
	}
	return flags
}

func decodeUserOverrides(data map[string]any) map[string]permission.UserOverride {
	raw, ok := data[fieldOverrides].(map[string]any)
	if !ok {
		return nil
	}

	overrides := make(map[string]permission.UserOverride, len(raw))
	for action, value := range raw {
		doc, ok := value.(map[string]any)
		if !ok || action == "" {
			continue
		}
		overrides[action] = permission.UserOverride{
			Enabled:   asBool(doc["enabled"]),
			GrantedBy: asString(doc["granted_by"]),
			GrantedAt: asTime(doc["granted_at"]),
		}
	}
	return overrides
}

func decodeRoleDefaults(data map[string]any) roles.DefaultsSet {
	raw, ok := data[fieldRoleDefaults].(map[string]any)
	if !ok {
		return nil
	}

	set := make(roles.DefaultsSet, len(raw))
	for name, value := range raw {
		role, err := roles.Parse(name)
		if err != nil {
			continue
		}
		set[role] = asStrings(value)
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

func decodeMetadata(v any) permission.FlagMetadata {
	doc, ok := v.(map[string]any)
	if !ok {
		return permission.FlagMetadata{}
	}
	return permission.FlagMetadata{
		Description: asString(doc["description"]),
		Category:    asString(doc["category"]),
		Risk:        asString(doc["risk"]),
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStrings(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func asRoles(v any) []roles.Role {
	names := asStrings(v)
	if len(names) == 0 {
		return nil
	}
	out := make([]roles.Role, 0, len(names))
	for _, name := range names {
		out = append(out, roles.Role(name))
	}
	return out
}

func asTime(v any) time.Time {
	switch vv := v.(type) {
	case time.Time:
		return vv
	case string:
		if t, err := time.Parse(time.RFC3339, vv); err == nil {
			return t
		}
	}
	return time.Time{}
}

func asTimePtr(v any) *time.Time {
	t := asTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}
