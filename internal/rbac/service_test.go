package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarhq/bazaar-admin/internal/shared"
)

// ============================================================================
// MOCK STORE
// ============================================================================

type mockStore struct {
	roles       map[int64]Role
	rolePerms   map[int64][]Permission
	catalog     map[int64]Permission
	userRoles   map[int64]int64
	nextRoleID  int64
	nextPermID  int64
	usersByRole map[int64]int

	// Error injection
	getRoleErr     error
	insertErr      error
	replaceErr     error
	countErr       error
	userRoleErr    error
	capabilityErr  error
	listForRoleErr error

	replaceCalls [][]int64
}

func newMockStore() *mockStore {
	return &mockStore{
		roles:       make(map[int64]Role),
		rolePerms:   make(map[int64][]Permission),
		catalog:     make(map[int64]Permission),
		userRoles:   make(map[int64]int64),
		usersByRole: make(map[int64]int),
		nextRoleID:  1,
		nextPermID:  1,
	}
}

func (m *mockStore) addRole(name string, system bool) Role {
	role := Role{ID: m.nextRoleID, Name: name, IsSystemRole: system}
	m.roles[role.ID] = role
	m.nextRoleID++
	return role
}

func (m *mockStore) addPermission(resource, action string) Permission {
	perm := Permission{ID: m.nextPermID, Resource: resource, Action: action}
	m.catalog[perm.ID] = perm
	m.nextPermID++
	return perm
}

func (m *mockStore) grant(roleID int64, perms ...Permission) {
	m.rolePerms[roleID] = append(m.rolePerms[roleID], perms...)
}

func (m *mockStore) assign(userID, roleID int64) {
	m.userRoles[userID] = roleID
	m.usersByRole[roleID]++
}

func (m *mockStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(m.catalog))
	for _, p := range m.catalog {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockStore) EnsurePermission(ctx context.Context, resource, action string) (Permission, error) {
	for _, p := range m.catalog {
		if p.Resource == resource && p.Action == action {
			return p, nil
		}
	}
	return m.addPermission(resource, action), nil
}

func (m *mockStore) ListPermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error) {
	if m.listForRoleErr != nil {
		return nil, m.listForRoleErr
	}
	return m.rolePerms[roleID], nil
}

func (m *mockStore) ReplacePermissionsForRole(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaceCalls = append(m.replaceCalls, permissionIDs)
	next := make([]Permission, 0, len(permissionIDs))
	for _, id := range permissionIDs {
		perm, ok := m.catalog[id]
		if !ok {
			return &ValidationError{Field: "permission_ids", Reason: "permission does not exist"}
		}
		next = append(next, perm)
	}
	m.rolePerms[roleID] = next
	return nil
}

func (m *mockStore) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) GetRole(ctx context.Context, id int64) (Role, error) {
	if m.getRoleErr != nil {
		return Role{}, m.getRoleErr
	}
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (m *mockStore) InsertRole(ctx context.Context, name, description string, isSystemRole bool) (Role, error) {
	if m.insertErr != nil {
		return Role{}, m.insertErr
	}
	role := Role{ID: m.nextRoleID, Name: name, Description: description, IsSystemRole: isSystemRole}
	m.roles[role.ID] = role
	m.nextRoleID++
	return role, nil
}

func (m *mockStore) UpdateRoleRow(ctx context.Context, id int64, name, description string) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	role.Name = name
	role.Description = description
	m.roles[id] = role
	return role, nil
}

func (m *mockStore) DeleteRoleRow(ctx context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	delete(m.roles, id)
	delete(m.rolePerms, id)
	return nil
}

func (m *mockStore) CountUsersWithRole(ctx context.Context, roleID int64) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.usersByRole[roleID], nil
}

func (m *mockStore) SetUserRole(ctx context.Context, userID, roleID int64) error {
	if prev, ok := m.userRoles[userID]; ok {
		m.usersByRole[prev]--
	}
	m.assign(userID, roleID)
	return nil
}

func (m *mockStore) UserRoleID(ctx context.Context, userID int64) (int64, bool, error) {
	if m.userRoleErr != nil {
		return 0, false, m.userRoleErr
	}
	roleID, ok := m.userRoles[userID]
	return roleID, ok, nil
}

func (m *mockStore) RoleHasCapability(ctx context.Context, roleID int64, resource, action string) (bool, error) {
	if m.capabilityErr != nil {
		return false, m.capabilityErr
	}
	for _, p := range m.rolePerms[roleID] {
		if p.Resource == resource && p.Action == action {
			return true, nil
		}
	}
	return false, nil
}

var _ Store = (*mockStore)(nil)

// ============================================================================
// REGISTRY TESTS
// ============================================================================

func TestCreateRoleRequiresName(t *testing.T) {
	reg := NewRegistry(newMockStore())

	_, err := reg.CreateRole(context.Background(), "   ", "desc", false, nil)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Field)
}

func TestCreateRoleAttachesPermissions(t *testing.T) {
	store := newMockStore()
	view := store.addPermission("support", "view")
	resolve := store.addPermission("support", "resolve")
	reg := NewRegistry(store)

	role, err := reg.CreateRole(context.Background(), "Support", "support staff", false, []int64{view.ID, resolve.ID})
	require.NoError(t, err)

	perms, err := store.ListPermissionsForRole(context.Background(), role.ID)
	require.NoError(t, err)
	assert.Len(t, perms, 2)
}

func TestUpdateRoleSystemRenameRejected(t *testing.T) {
	store := newMockStore()
	admin := store.addRole("Administrator", true)
	reg := NewRegistry(store)

	_, err := reg.UpdateRole(context.Background(), admin.ID, "Root", "new desc", nil)
	require.ErrorIs(t, err, ErrImmutableField)

	// Same name with a new description is fine.
	updated, err := reg.UpdateRole(context.Background(), admin.ID, "Administrator", "new desc", nil)
	require.NoError(t, err)
	assert.Equal(t, "new desc", updated.Description)
	assert.Equal(t, "Administrator", updated.Name)
}

func TestUpdateRoleReplacesPermissionSet(t *testing.T) {
	store := newMockStore()
	role := store.addRole("Support", false)
	view := store.addPermission("support", "view")
	resolve := store.addPermission("support", "resolve")
	store.grant(role.ID, view)
	reg := NewRegistry(store)

	_, err := reg.UpdateRole(context.Background(), role.ID, "Support", "", []int64{resolve.ID})
	require.NoError(t, err)

	perms, err := store.ListPermissionsForRole(context.Background(), role.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "resolve", perms[0].Action)
}

func TestUpdateRoleNilPermissionsLeavesSet(t *testing.T) {
	store := newMockStore()
	role := store.addRole("Support", false)
	store.grant(role.ID, store.addPermission("support", "view"))
	reg := NewRegistry(store)

	_, err := reg.UpdateRole(context.Background(), role.ID, "Support", "updated", nil)
	require.NoError(t, err)
	assert.Empty(t, store.replaceCalls)
}

func TestDeleteRoleProtections(t *testing.T) {
	store := newMockStore()
	admin := store.addRole("Administrator", true)
	support := store.addRole("Support", false)
	store.assign(7, support.ID)
	store.assign(8, support.ID)
	store.assign(9, support.ID)
	reg := NewRegistry(store)

	err := reg.DeleteRole(context.Background(), admin.ID)
	require.ErrorIs(t, err, ErrSystemRoleProtected)

	err = reg.DeleteRole(context.Background(), support.ID)
	var inUse *RoleInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, 3, inUse.Users)
	assert.Contains(t, err.Error(), "3 users are currently assigned")

	// Reassign everyone, then the delete goes through.
	other := store.addRole("Viewer", false)
	for _, userID := range []int64{7, 8, 9} {
		require.NoError(t, reg.AssignUserRole(context.Background(), userID, other.ID))
	}
	require.NoError(t, reg.DeleteRole(context.Background(), support.ID))

	_, err = reg.GetRole(context.Background(), support.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRoleMissing(t *testing.T) {
	reg := NewRegistry(newMockStore())
	err := reg.DeleteRole(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAssignUserRoleUnknownRole(t *testing.T) {
	reg := NewRegistry(newMockStore())
	err := reg.AssignUserRole(context.Background(), 1, 99)
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestAssignUserRoleStoreFailure(t *testing.T) {
	store := newMockStore()
	store.getRoleErr = shared.ErrStoreUnavailable
	reg := NewRegistry(store)

	err := reg.AssignUserRole(context.Background(), 1, 2)
	require.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidRole)
}
