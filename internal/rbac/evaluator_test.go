package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(store Store) *Evaluator {
	return NewEvaluator(store, nil)
}

func TestHasPermissionWildcardGrantsEverything(t *testing.T) {
	store := newMockStore()
	admin := store.addRole("Administrator", true)
	store.grant(admin.ID, store.addPermission(WildcardResource, WildcardAction))
	store.assign(1, admin.ID)
	eval := newTestEvaluator(store)

	assert.True(t, eval.HasPermission(context.Background(), 1, "users", "view"))
	assert.True(t, eval.HasPermission(context.Background(), 1, "anything", "whatsoever"))
}

func TestHasPermissionNoRoleDeniesAll(t *testing.T) {
	store := newMockStore()
	eval := newTestEvaluator(store)

	assert.False(t, eval.HasPermission(context.Background(), 5, "users", "view"))

	perms, err := eval.UserPermissions(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestHasPermissionExactMatchOnly(t *testing.T) {
	store := newMockStore()
	support := store.addRole("Support", false)
	store.grant(support.ID, store.addPermission("support", "view"))
	store.assign(2, support.ID)
	eval := newTestEvaluator(store)

	assert.True(t, eval.HasPermission(context.Background(), 2, "support", "view"))
	assert.False(t, eval.HasPermission(context.Background(), 2, "products", "moderate"))
}

func TestHasPermissionFailsClosedOnStoreError(t *testing.T) {
	store := newMockStore()
	support := store.addRole("Support", false)
	store.grant(support.ID, store.addPermission("support", "view"))
	store.assign(2, support.ID)
	store.capabilityErr = errors.New("connection refused")
	eval := newTestEvaluator(store)

	assert.False(t, eval.HasPermission(context.Background(), 2, "support", "view"))

	store.capabilityErr = nil
	store.userRoleErr = errors.New("connection refused")
	assert.False(t, eval.HasPermission(context.Background(), 2, "support", "view"))
}

func TestHasAllCapabilities(t *testing.T) {
	store := newMockStore()
	support := store.addRole("Support", false)
	store.grant(support.ID, store.addPermission("support", "view"))
	store.assign(2, support.ID)
	eval := newTestEvaluator(store)

	// The empty list is vacuously granted.
	assert.True(t, eval.HasAllCapabilities(context.Background(), 2, nil))

	// A single-entry list equals the scalar check.
	ok, err := eval.CheckAll(context.Background(), 2, []string{"support.view"})
	require.NoError(t, err)
	assert.Equal(t, eval.HasPermission(context.Background(), 2, "support", "view"), ok)

	ok, err = eval.CheckAll(context.Background(), 2, []string{"support.view", "products.moderate"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckAllMalformedCapability(t *testing.T) {
	store := newMockStore()
	eval := newTestEvaluator(store)

	_, err := eval.CheckAll(context.Background(), 2, []string{"usersview"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability(" Users.View ")
	require.NoError(t, err)
	assert.Equal(t, Capability{Resource: "users", Action: "view"}, c)
	assert.Equal(t, "users.view", c.String())

	for _, bad := range []string{"", "usersview", ".view", "users.", "."} {
		_, err := ParseCapability(bad)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, "input %q", bad)
	}
}

// Editing a role's permission set is visible to already-assigned users on the
// next check, without touching the assignment.
func TestRoleEditPropagatesToAssignedUsers(t *testing.T) {
	store := newMockStore()
	support := store.addRole("Support", false)
	view := store.addPermission("support", "view")
	store.grant(support.ID, view)
	store.assign(10, support.ID)
	reg := NewRegistry(store)
	eval := newTestEvaluator(store)

	assert.True(t, eval.HasPermission(context.Background(), 10, "support", "view"))
	assert.False(t, eval.HasPermission(context.Background(), 10, "support", "resolve"))

	resolve := store.addPermission("support", "resolve")
	_, err := reg.UpdateRole(context.Background(), support.ID, "Support", "", []int64{view.ID, resolve.ID})
	require.NoError(t, err)

	assert.True(t, eval.HasPermission(context.Background(), 10, "support", "resolve"))
}

func TestUserPermissionsPropagatesStoreError(t *testing.T) {
	store := newMockStore()
	support := store.addRole("Support", false)
	store.assign(2, support.ID)
	store.listForRoleErr = errors.New("connection refused")
	eval := newTestEvaluator(store)

	_, err := eval.UserPermissions(context.Background(), 2)
	require.Error(t, err)
}
