package access

// the roles known to promptlib
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// AdminFeature is a feature reserved to administrators
type AdminFeature string

// all admin features
const (
	FeatureApprovePrompts  AdminFeature = "approve_prompts"
	FeatureManageUsers     AdminFeature = "manage_users"
	FeatureViewAnalytics   AdminFeature = "view_analytics"
	FeatureEditAnyPrompt   AdminFeature = "edit_any_prompt"
	FeatureDeleteAnyPrompt AdminFeature = "delete_any_prompt"
)

// AdminFeatures lists all features an administrator has access to
var AdminFeatures = []AdminFeature{
	FeatureApprovePrompts,
	FeatureManageUsers,
	FeatureViewAnalytics,
	FeatureEditAnyPrompt,
	FeatureDeleteAnyPrompt,
}

// IsValidRole returns true for the roles stored in the user table
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// IsAdmin returns true if role is the admin role
func IsAdmin(role string) bool {
	return role == RoleAdmin
}

// HasRole checks whether role satisfies the required role. Every
// authenticated role satisfies "user", only "admin" satisfies "admin".
func HasRole(role, required string) bool {
	switch required {
	case RoleAdmin:
		return role == RoleAdmin
	case RoleUser:
		return role == RoleUser || role == RoleAdmin
	}
	return false
}

// RoleDisplayName returns the human readable name of a role
func RoleDisplayName(role string) string {
	switch role {
	case RoleAdmin:
		return "Administrator"
	case RoleUser:
		return "Member"
	}
	return "Guest"
}

// RoleBadgeVariant returns the badge style used to render a role
func RoleBadgeVariant(role string) string {
	switch role {
	case RoleAdmin:
		return "default"
	case RoleUser:
		return "secondary"
	}
	return "outline"
}

// CanAccessAdminFeature is true only for admins and only for known features
func CanAccessAdminFeature(role string, feature AdminFeature) bool {
	if !IsAdmin(role) {
		return false
	}
	for _, f := range AdminFeatures {
		if f == feature {
			return true
		}
	}
	return false
}

// VisibleRoutes returns the navigation routes for a role. An empty role is anonymous.
func VisibleRoutes(role string) []string {
	routes := []string{"/", "/directory", "/subscribe"}
	if HasRole(role, RoleUser) {
		routes = append(routes, "/submit", "/profile")
	}
	if IsAdmin(role) {
		routes = append(routes, "/admin")
	}
	return routes
}
