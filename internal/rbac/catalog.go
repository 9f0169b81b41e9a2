package rbac

import "sort"

// Permission catalog. Permissions are immutable at runtime; changing the
// catalog requires a redeploy.
const (
	PermRequestsView   = "requests.view"
	PermRequestsManage = "requests.manage"

	PermCustomersView = "customers.view"
	PermCustomersEdit = "customers.edit"

	PermAppointmentsView   = "appointments.view"
	PermAppointmentsManage = "appointments.manage"

	PermInvoicesView   = "invoices.view"
	PermInvoicesManage = "invoices.manage"

	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermPermissionsView = "permissions.view"
	PermPermissionsEdit = "permissions.edit"

	PermDashboardView = "dashboard.view"

	PermAutomationView   = "automation.view"
	PermAutomationManage = "automation.manage"
)

var catalog = map[string]struct{}{
	PermRequestsView:       {},
	PermRequestsManage:     {},
	PermCustomersView:      {},
	PermCustomersEdit:      {},
	PermAppointmentsView:   {},
	PermAppointmentsManage: {},
	PermInvoicesView:       {},
	PermInvoicesManage:     {},
	PermUsersView:          {},
	PermUsersEdit:          {},
	PermPermissionsView:    {},
	PermPermissionsEdit:    {},
	PermDashboardView:      {},
	PermAutomationView:     {},
	PermAutomationManage:   {},
}

// roleDefaults maps each role to its default permission set.
var roleDefaults = map[string][]string{
	RoleAdmin: Catalog(),
	RoleManager: {
		PermRequestsView, PermRequestsManage,
		PermCustomersView, PermCustomersEdit,
		PermAppointmentsView, PermAppointmentsManage,
		PermInvoicesView, PermInvoicesManage,
		PermUsersView,
		PermDashboardView,
		PermAutomationView, PermAutomationManage,
	},
	RoleEmployee: {
		PermRequestsView,
		PermCustomersView,
		PermAppointmentsView,
		PermInvoicesView,
		PermDashboardView,
	},
	RoleUser: {},
}

// Catalog returns every known permission, sorted.
func Catalog() []string {
	out := make([]string, 0, len(catalog))
	for p := range catalog {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// KnownPermission reports whether the permission is part of the catalog.
func KnownPermission(permission string) bool {
	_, ok := catalog[permission]
	return ok
}

// RoleDefaults returns the default permission set for a role.
func RoleDefaults(role string) ([]string, error) {
	defaults, ok := roleDefaults[role]
	if !ok {
		return nil, ErrUnknownRole
	}
	out := make([]string, len(defaults))
	copy(out, defaults)
	return out, nil
}
