package users

import "strings"

// RoleType represents a user's role within their tenant
type RoleType string

const (
	RoleOwner  RoleType = "owner"  // Can manage billing, members, and tenant settings
	RoleAdmin  RoleType = "admin"  // Can manage members and tenant settings
	RoleMember RoleType = "member" // Regular user within a tenant
	RoleViewer RoleType = "viewer" // Read-only access within a tenant
)

// User is the resolved profile attached to an authenticated session.
// The field set matches the backend's /api/profile response; FirstName,
// LastName and Role are optional and may be empty on older backends.
type User struct {
	UserID    string   `json:"user_id"`
	TenantID  string   `json:"tenant_id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Role      RoleType `json:"role,omitempty"`
}

// FullName returns the display name, falling back to the email address
// when no name components are set.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// BelongsToTenant checks tenant membership. An empty tenantID matches any
// user, mirroring an unscoped request.
func (u *User) BelongsToTenant(tenantID string) bool {
	if tenantID == "" {
		return true
	}
	return u.TenantID == tenantID
}

// CanManageTenant returns true if the user's role allows changing tenant
// settings and membership.
func (u *User) CanManageTenant() bool {
	return u.Role == RoleOwner || u.Role == RoleAdmin
}

// ReadOnly returns true if the user may only view tenant data.
func (u *User) ReadOnly() bool {
	return u.Role == RoleViewer
}
