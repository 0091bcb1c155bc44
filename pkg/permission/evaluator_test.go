package permission_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fieldline/fieldline/pkg/permission"
	"github.com/fieldline/fieldline/pkg/roles"
)

var testIdentity = permission.Identity{
	UserID:   "user-1",
	TenantID: "tenant-1",
	Role:     roles.RoleTeamMember,
}

func timePtr(t time.Time) *time.Time { return &t }

func TestEvaluator_UserOverrideSupremacy(t *testing.T) {
	t.Parallel()

	// Owner's role default grants financial_export_data and a tenant flag
	// enables it too, yet the user override denies; the override wins.
	owner := permission.Identity{UserID: "user-1", TenantID: "tenant-1", Role: roles.RoleOwner}
	ev := permission.New(owner, permission.Snapshot{
		TenantFlags: map[string]permission.TenantFlag{
			roles.ActionFinancialExportData: {Enabled: true, TargetedRoles: []roles.Role{roles.RoleOwner}},
		},
		UserOverrides: map[string]permission.UserOverride{
			roles.ActionFinancialExportData: {Enabled: false},
		},
	})

	assert.False(t, ev.Can(roles.ActionFinancialExportData))

	d := ev.Evaluate(roles.ActionFinancialExportData, nil)
	assert.Equal(t, permission.SourceUserOverride, d.Source)
	assert.False(t, d.Allowed)
}

func TestEvaluator_UserOverrideGrants(t *testing.T) {
	t.Parallel()

	// A client role has no default for assigning tasks; an override grants it.
	client := permission.Identity{UserID: "user-9", TenantID: "tenant-1", Role: roles.RoleClient}
	ev := permission.New(client, permission.Snapshot{
		UserOverrides: map[string]permission.UserOverride{
			roles.ActionTaskAssign: {Enabled: true},
		},
	})

	assert.True(t, ev.Can(roles.ActionTaskAssign))
}

func TestEvaluator_TenantFlag(t *testing.T) {
	t.Parallel()

	now := time.Now()
	clock := func() time.Time { return now }

	tests := []struct {
		name       string
		flag       permission.TenantFlag
		want       bool
		wantSource permission.Source
	}{
		{
			name:       "role targeted and enabled",
			flag:       permission.TenantFlag{Enabled: true, TargetedRoles: []roles.Role{roles.RoleTeamMember}},
			want:       true,
			wantSource: permission.SourceTenantFlag,
		},
		{
			name:       "role targeted and disabled",
			flag:       permission.TenantFlag{Enabled: false, TargetedRoles: []roles.Role{roles.RoleTeamMember}},
			want:       false,
			wantSource: permission.SourceTenantFlag,
		},
		{
			name: "exclusion overrides role targeting",
			flag: permission.TenantFlag{
				Enabled:       true,
				TargetedRoles: []roles.Role{roles.RoleTeamMember},
				ExcludedUsers: []string{"user-1"},
			},
			want:       false,
			wantSource: permission.SourceTenantFlag,
		},
		{
			name: "user targeting ignores role",
			flag: permission.TenantFlag{
				Enabled:       true,
				TargetedRoles: []roles.Role{roles.RoleOwner},
				TargetedUsers: []string{"user-1"},
			},
			want:       true,
			wantSource: permission.SourceTenantFlag,
		},
		{
			name: "expired flag denies despite enabled",
			flag: permission.TenantFlag{
				Enabled:       true,
				TargetedRoles: []roles.Role{roles.RoleTeamMember},
				ExpiresAt:     timePtr(now.Add(-time.Hour)),
			},
			want:       false,
			wantSource: permission.SourceTenantFlag,
		},
		{
			name: "expired flag denies targeted user too",
			flag: permission.TenantFlag{
				Enabled:       true,
				TargetedUsers: []string{"user-1"},
				ExpiresAt:     timePtr(now.Add(-time.Minute)),
			},
			want:       false,
			wantSource: permission.SourceTenantFlag,
		},
		{
			name: "future expiry still grants",
			flag: permission.TenantFlag{
				Enabled:       true,
				TargetedRoles: []roles.Role{roles.RoleTeamMember},
				ExpiresAt:     timePtr(now.Add(time.Hour)),
			},
			want:       true,
			wantSource: permission.SourceTenantFlag,
		},
		{
			name:       "untargeted role falls through to default deny",
			flag:       permission.TenantFlag{Enabled: true, TargetedRoles: []roles.Role{roles.RoleOwner}},
			want:       false,
			wantSource: permission.SourceNone,
		},
	}

	const action = "scheduling_optimize_route"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := permission.New(testIdentity, permission.Snapshot{
				TenantFlags: map[string]permission.TenantFlag{action: tt.flag},
			}, permission.WithClock(clock))

			d := ev.Evaluate(action, nil)
			assert.Equal(t, tt.want, d.Allowed)
			assert.Equal(t, tt.wantSource, d.Source)
			assert.Equal(t, tt.want, ev.Can(action))
		})
	}
}

func TestEvaluator_RoleDefaultFallback(t *testing.T) {
	t.Parallel()

	// No tenant flags document at all: the hardcoded table governs.
	ev := permission.New(testIdentity, permission.Snapshot{})

	assert.True(t, ev.Can(roles.ActionTaskViewAssigned))
	assert.False(t, ev.Can(roles.ActionTaskAssign))

	d := ev.Evaluate(roles.ActionTaskViewAssigned, nil)
	assert.Equal(t, permission.SourceRoleDefault, d.Source)
}

func TestEvaluator_TenantConfiguredDefaults(t *testing.T) {
	t.Parallel()

	// Tenant-level defaults replace the hardcoded table entirely.
	ev := permission.New(testIdentity, permission.Snapshot{
		RoleDefaults: roles.DefaultsSet{
			roles.RoleTeamMember: {roles.ActionTaskAssign},
		},
	})

	assert.True(t, ev.Can(roles.ActionTaskAssign))
	assert.False(t, ev.Can(roles.ActionTaskViewAssigned),
		"hardcoded grants do not leak through configured defaults")
}

func TestEvaluator_DefaultDeny(t *testing.T) {
	t.Parallel()

	ev := permission.New(testIdentity, permission.Snapshot{})

	d := ev.Evaluate("totally_unknown_action", nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, permission.SourceNone, d.Source)
	assert.Equal(t, "no matching permission rule", d.Reason)
}

func TestEvaluator_PrecedenceTotality(t *testing.T) {
	t.Parallel()

	known := map[permission.Source]struct{}{
		permission.SourceUserOverride: {},
		permission.SourceTenantFlag:   {},
		permission.SourceRoleDefault:  {},
		permission.SourceContextRule:  {},
		permission.SourceNone:         {},
	}

	ev := permission.New(testIdentity, permission.Snapshot{
		TenantFlags: map[string]permission.TenantFlag{
			"flag_a": {Enabled: true, TargetedRoles: []roles.Role{roles.RoleTeamMember}},
			"flag_b": {Enabled: true, TargetedRoles: []roles.Role{roles.RoleOwner}},
		},
		UserOverrides: map[string]permission.UserOverride{"flag_c": {Enabled: true}},
	})

	actions := []string{
		"flag_a", "flag_b", "flag_c",
		roles.ActionTaskViewAssigned,
		roles.ActionTaskComplete,
		"unknown_action", "",
	}
	contexts := []permission.RuleContext{
		nil,
		{},
		{"task_owner_id": "user-1"},
		{"task_owner_id": 42},
		{"garbage": func() {}},
	}

	for _, action := range actions {
		for _, rc := range contexts {
			d := ev.Evaluate(action, rc)
			_, ok := known[d.Source]
			assert.Truef(t, ok, "action %q ctx %v produced source %q", action, rc, d.Source)
		}
	}
}

func TestEvaluator_CanEachIndependence(t *testing.T) {
	t.Parallel()

	ev := permission.New(testIdentity, permission.Snapshot{
		TenantFlags: map[string]permission.TenantFlag{
			"flag_a": {Enabled: true, TargetedRoles: []roles.Role{roles.RoleTeamMember}},
		},
	})

	got := ev.CanEach("flag_a", roles.ActionTaskViewAssigned, "unknown_action")
	assert.Equal(t, map[string]bool{
		"flag_a":                     ev.Can("flag_a"),
		roles.ActionTaskViewAssigned: ev.Can(roles.ActionTaskViewAssigned),
		"unknown_action":             ev.Can("unknown_action"),
	}, got)
}

func TestEvaluator_AllPermissions(t *testing.T) {
	t.Parallel()

	ev := permission.New(testIdentity, permission.Snapshot{
		TenantFlags: map[string]permission.TenantFlag{
			"beta_feature": {Enabled: true, TargetedRoles: []roles.Role{roles.RoleTeamMember}},
			"owner_only":   {Enabled: true, TargetedRoles: []roles.Role{roles.RoleOwner}},
		},
		UserOverrides: map[string]permission.UserOverride{
			"special_grant": {Enabled: true},
		},
	})

	perms := ev.AllPermissions()

	assert.True(t, perms["beta_feature"])
	assert.False(t, perms["owner_only"])
	assert.True(t, perms["special_grant"])
	assert.True(t, perms[roles.ActionTaskViewAssigned])
	_, present := perms[roles.ActionTaskAssign]
	assert.False(t, present, "actions outside the union are not primed")
}

func TestEvaluator_CacheConsistency(t *testing.T) {
	t.Parallel()

	now := time.Now()
	clock := func() time.Time { return now }

	flags := map[string]permission.TenantFlag{
		"flag_a": {Enabled: true, TargetedRoles: []roles.Role{roles.RoleTeamMember}},
	}
	ev := permission.New(testIdentity, permission.Snapshot{TenantFlags: flags},
		permission.WithClock(clock))

	assert.True(t, ev.Can("flag_a"))

	// Mutating the backing map after the first evaluation must not be
	// visible until the cache is cleared (stale-until-TTL semantics).
	flags["flag_a"] = permission.TenantFlag{Enabled: false, TargetedRoles: []roles.Role{roles.RoleTeamMember}}
	assert.True(t, ev.Can("flag_a"), "cached decision served before TTL expiry")

	ev.ClearCache()
	assert.False(t, ev.Can("flag_a"), "mutation visible after ClearCache")
}

func TestEvaluator_CacheTTLExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now()

	flags := map[string]permission.TenantFlag{
		"flag_a": {Enabled: true, TargetedRoles: []roles.Role{roles.RoleTeamMember}},
	}
	ev := permission.New(testIdentity, permission.Snapshot{TenantFlags: flags},
		permission.WithClock(func() time.Time { return now }), permission.WithTTL(time.Minute))

	assert.True(t, ev.Can("flag_a"))
	flags["flag_a"] = permission.TenantFlag{Enabled: false, TargetedRoles: []roles.Role{roles.RoleTeamMember}}

	now = now.Add(30 * time.Second)
	assert.True(t, ev.Can("flag_a"), "still cached inside the TTL window")

	now = now.Add(31 * time.Second)
	assert.False(t, ev.Can("flag_a"), "re-evaluated after TTL lapse")
}

func TestEvaluator_CachePreservesProvenance(t *testing.T) {
	t.Parallel()

	ev := permission.New(testIdentity, permission.Snapshot{
		UserOverrides: map[string]permission.UserOverride{"flag_a": {Enabled: true}},
	})

	first := ev.Evaluate("flag_a", nil)
	second := ev.Evaluate("flag_a", nil)

	assert.Equal(t, permission.SourceUserOverride, first.Source)
	assert.Equal(t, first, second, "cached replay keeps the originating source")
}

func TestEvaluator_CacheKeyedByContext(t *testing.T) {
	t.Parallel()

	ev := permission.New(testIdentity, permission.Snapshot{})

	mine := ev.CanContext(roles.ActionTaskDelete, permission.RuleContext{"created_by": "user-1"})
	theirs := ev.CanContext(roles.ActionTaskDelete, permission.RuleContext{"created_by": "user-2"})

	assert.True(t, mine)
	assert.False(t, theirs, "different contexts must not collide in the cache")
}

func TestEvaluator_NeverPanics(t *testing.T) {
	t.Parallel()

	ev := permission.New(permission.Identity{}, permission.Snapshot{})

	assert.NotPanics(t, func() {
		_ = ev.Can("")
		_ = ev.CanContext("x", permission.RuleContext{"f": func() {}})
		_ = ev.Evaluate("x", permission.RuleContext{"nested": map[string]any{"deep": []any{1, "a", nil}}})
		_ = ev.CanEach()
		_ = ev.AllPermissions()
		ev.ClearCache()
	})
}
