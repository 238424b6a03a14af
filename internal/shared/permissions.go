package shared

// Resources and actions protecting Citadel's own management surface.
const (
	ResourceAuthz   = "authz"
	ResourceUsers   = "users"
	ResourceTenants = "tenants"

	ActionView   = "view"
	ActionManage = "manage"
)

// CorePermissionCodes lists the permission codes seeded for the management
// API, in "resource:action" convention.
func CorePermissionCodes() []string {
	return []string{
		ResourceAuthz + ":" + ActionView,
		ResourceAuthz + ":" + ActionManage,
		ResourceUsers + ":" + ActionView,
		ResourceUsers + ":" + ActionManage,
		ResourceTenants + ":" + ActionView,
		ResourceTenants + ":" + ActionManage,
	}
}
