package roles_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/fieldline/pkg/roles"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    roles.Role
		wantErr bool
	}{
		{name: "owner", input: "owner", want: roles.RoleOwner},
		{name: "manager", input: "manager", want: roles.RoleManager},
		{name: "team member", input: "team_member", want: roles.RoleTeamMember},
		{name: "client", input: "client", want: roles.RoleClient},
		{name: "unknown", input: "superadmin", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "case sensitive", input: "Owner", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := roles.Parse(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, roles.ErrUnknownRole))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultsSet_Granted(t *testing.T) {
	t.Parallel()

	defaults := roles.Defaults()

	assert.True(t, defaults.Granted(roles.RoleTeamMember, roles.ActionTaskViewAssigned))
	assert.True(t, defaults.Granted(roles.RoleOwner, roles.ActionFinancialExportData))
	assert.False(t, defaults.Granted(roles.RoleClient, roles.ActionTaskViewAssigned))
	assert.False(t, defaults.Granted(roles.RoleManager, roles.ActionSettingsManageFeatures))
	assert.False(t, defaults.Granted(roles.RoleOwner, "nonexistent_action"))
	assert.False(t, defaults.Granted("ghost", roles.ActionTaskViewAssigned))
}

func TestDefaults_SupersetChain(t *testing.T) {
	t.Parallel()

	defaults := roles.Defaults()
	chain := []roles.Role{roles.RoleClient, roles.RoleTeamMember, roles.RoleManager, roles.RoleOwner}

	for i := 0; i < len(chain)-1; i++ {
		lower, higher := chain[i], chain[i+1]
		for _, action := range defaults.Actions(lower) {
			assert.Truef(t, defaults.Granted(higher, action),
				"%s must inherit %q from %s", higher, action, lower)
		}
	}
}

func TestDefaults_ReturnsCopy(t *testing.T) {
	t.Parallel()

	first := roles.Defaults()
	first[roles.RoleClient] = append(first[roles.RoleClient], "sneaky_action")

	second := roles.Defaults()
	assert.False(t, second.Granted(roles.RoleClient, "sneaky_action"))
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	t.Run("valid document", func(t *testing.T) {
		t.Parallel()
		set, err := roles.ParseDefaults([]byte(`
roles:
  manager:
    - task_management_assign_task
    - task_management_view_all_tasks
  team_member:
    - task_management_view_assigned_tasks
`))
		require.NoError(t, err)
		assert.True(t, set.Granted(roles.RoleManager, roles.ActionTaskAssign))
		assert.True(t, set.Granted(roles.RoleTeamMember, roles.ActionTaskViewAssigned))
		assert.False(t, set.Granted(roles.RoleTeamMember, roles.ActionTaskAssign))
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		t.Parallel()
		_, err := roles.ParseDefaults([]byte("roles:\n  superuser:\n    - anything\n"))
		assert.True(t, errors.Is(err, roles.ErrUnknownRole))
	})

	t.Run("empty document rejected", func(t *testing.T) {
		t.Parallel()
		_, err := roles.ParseDefaults([]byte("{}"))
		assert.True(t, errors.Is(err, roles.ErrInvalidDefaults))
	})

	t.Run("malformed yaml rejected", func(t *testing.T) {
		t.Parallel()
		_, err := roles.ParseDefaults([]byte("roles: [not a map"))
		assert.True(t, errors.Is(err, roles.ErrInvalidDefaults))
	})
}
