package users_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veloflux/go-session/users"
)

func TestFullName(t *testing.T) {
	u := &users.User{Email: "john.doe@example.com", FirstName: "John", LastName: "Doe"}
	require.Equal(t, "John Doe", u.FullName())

	u = &users.User{Email: "john.doe@example.com", FirstName: "John"}
	require.Equal(t, "John", u.FullName())

	u = &users.User{Email: "john.doe@example.com"}
	require.Equal(t, "john.doe@example.com", u.FullName())
}

func TestBelongsToTenant(t *testing.T) {
	u := &users.User{UserID: "user-1", TenantID: "t1"}
	require.True(t, u.BelongsToTenant("t1"))
	require.False(t, u.BelongsToTenant("t2"))
	require.True(t, u.BelongsToTenant(""))
}

func TestRoleHelpers(t *testing.T) {
	require.True(t, (&users.User{Role: users.RoleOwner}).CanManageTenant())
	require.True(t, (&users.User{Role: users.RoleAdmin}).CanManageTenant())
	require.False(t, (&users.User{Role: users.RoleMember}).CanManageTenant())
	require.True(t, (&users.User{Role: users.RoleViewer}).ReadOnly())
	require.False(t, (&users.User{Role: users.RoleMember}).ReadOnly())
}
