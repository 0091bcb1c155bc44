package roles

// Action identifiers used by the default permission tables. The vocabulary is
// open-ended: calling code may query any string, and unknown identifiers
// simply resolve to deny. These constants exist so the defaults table and the
// callers that gate on them share one spelling.
const (
	ActionTaskViewAssigned = "task_management_view_assigned_tasks"
	ActionTaskViewAll      = "task_management_view_all_tasks"
	ActionTaskCreate       = "task_management_create_task"
	ActionTaskAssign       = "task_management_assign_task"
	ActionTaskComplete     = "task_management_complete_task"
	ActionTaskDelete       = "task_management_delete_task"

	ActionClientView      = "client_management_view_clients"
	ActionClientCreate    = "client_management_create_client"
	ActionClientEdit      = "client_management_edit_client"
	ActionClientDelete    = "client_management_delete_client"
	ActionClientViewNotes = "client_management_view_client_notes"

	ActionCalendarViewOwn  = "calendar_view_own_schedule"
	ActionCalendarViewTeam = "calendar_view_team_schedule"
	ActionCalendarManage   = "calendar_manage_schedule"

	ActionTeamViewMembers  = "team_management_view_members"
	ActionTeamInvite       = "team_management_invite_member"
	ActionTeamRemove       = "team_management_remove_member"
	ActionTeamChangeRoles  = "team_management_change_roles"

	ActionFinancialViewInvoices  = "financial_view_invoices"
	ActionFinancialCreateInvoice = "financial_create_invoice"
	ActionFinancialExportData    = "financial_export_data"

	ActionSettingsManageTenant   = "system_settings_manage_tenant"
	ActionSettingsManageFeatures = "system_settings_manage_features"
)
