package tenants

import "time"

// Tenant represents an organization-scoped partition of the product that
// a user can belong to and switch between.
type Tenant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Plan         string    `json:"plan"`
	Active       bool      `json:"active"`
	ContactEmail string    `json:"contact_email"`
	CustomDomain string    `json:"custom_domain,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
