package roles

import "slices"

// Hardcoded fallback grants. Each tier is built on top of the previous one so
// the superset chain owner > manager > team_member > client holds by
// construction. roles_test.go asserts the chain to catch regressions when
// actions move between tiers.
var (
	clientActions = []string{
		ActionCalendarViewOwn,
		ActionFinancialViewInvoices,
	}

	teamMemberActions = append(slices.Clone(clientActions),
		ActionTaskViewAssigned,
		ActionTaskComplete,
		ActionClientView,
		ActionClientViewNotes,
	)

	managerActions = append(slices.Clone(teamMemberActions),
		ActionTaskViewAll,
		ActionTaskCreate,
		ActionTaskAssign,
		ActionTaskDelete,
		ActionClientCreate,
		ActionClientEdit,
		ActionCalendarViewTeam,
		ActionCalendarManage,
		ActionTeamViewMembers,
		ActionTeamInvite,
	)

	ownerActions = append(slices.Clone(managerActions),
		ActionClientDelete,
		ActionTeamRemove,
		ActionTeamChangeRoles,
		ActionFinancialCreateInvoice,
		ActionFinancialExportData,
		ActionSettingsManageTenant,
		ActionSettingsManageFeatures,
	)
)

// Defaults returns the hardcoded role-default table used when a tenant has no
// configured defaults or its configuration is unreadable. The returned set is
// a copy and safe to modify.
func Defaults() DefaultsSet {
	return DefaultsSet{
		RoleOwner:      ownerActions,
		RoleManager:    managerActions,
		RoleTeamMember: teamMemberActions,
		RoleClient:     clientActions,
	}.Clone()
}
