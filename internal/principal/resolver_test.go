package principal

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarhq/bazaar-admin/internal/rbac"
	"github.com/bazaarhq/bazaar-admin/internal/shared"
	_ "github.com/bazaarhq/bazaar-admin/testing"
)

type fakeProfiles struct {
	profiles map[int64]Profile
	err      error
	loads    int
}

func (f *fakeProfiles) ProfileByID(ctx context.Context, userID int64) (Profile, error) {
	f.loads++
	if f.err != nil {
		return Profile{}, f.err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return Profile{}, shared.ErrNotFound
	}
	return p, nil
}

// fakeRBACStore satisfies rbac.Store; only the evaluator paths are live.
type fakeRBACStore struct {
	rbac.Store

	roleByUser  map[int64]int64
	permsByRole map[int64][]rbac.Permission
	listCalls   int
}

func (f *fakeRBACStore) UserRoleID(ctx context.Context, userID int64) (int64, bool, error) {
	roleID, ok := f.roleByUser[userID]
	return roleID, ok, nil
}

func (f *fakeRBACStore) ListPermissionsForRole(ctx context.Context, roleID int64) ([]rbac.Permission, error) {
	f.listCalls++
	return f.permsByRole[roleID], nil
}

func newTestResolver(t *testing.T, opts Options) (*Resolver, *fakeProfiles, *fakeRBACStore, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	profiles := &fakeProfiles{profiles: map[int64]Profile{
		7: {UserID: 7, Email: "mira@bazaar.test", Name: "Mira", Status: shared.StatusActive, RoleName: "Support", HasRole: true},
		9: {UserID: 9, Email: "root@bazaar.test", Name: "Root", Status: shared.StatusActive, RoleName: "Administrator", HasRole: true},
	}}
	store := &fakeRBACStore{
		roleByUser: map[int64]int64{7: 2, 9: 1},
		permsByRole: map[int64][]rbac.Permission{
			2: {{ID: 1, Resource: "support", Action: "view"}, {ID: 2, Resource: "users", Action: "view"}},
			1: {{ID: 3, Resource: rbac.WildcardResource, Action: rbac.WildcardAction}},
		},
	}
	cache := NewCache(client, time.Minute)
	r := NewResolver(profiles, rbac.NewEvaluator(store, nil), cache, opts, nil)
	return r, profiles, store, cache
}

func TestResolveBuildsSnapshotFromRole(t *testing.T) {
	r, _, _, _ := newTestResolver(t, Options{})

	p, err := r.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.UserID)
	assert.Equal(t, "Support", p.RoleName)
	assert.Equal(t, []string{"support.view", "users.view"}, p.Permissions)
}

func TestResolveServesSecondCallFromCache(t *testing.T) {
	r, profiles, store, _ := newTestResolver(t, Options{})

	_, err := r.Resolve(context.Background(), 7)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, profiles.loads)
	assert.Equal(t, 1, store.listCalls)
}

func TestResolveUnknownUser(t *testing.T) {
	r, _, _, _ := newTestResolver(t, Options{})

	_, err := r.Resolve(context.Background(), 404)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolveWorksWithoutCache(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[int64]Profile{
		7: {UserID: 7, Email: "mira@bazaar.test", RoleName: "Support", HasRole: true},
	}}
	store := &fakeRBACStore{
		roleByUser:  map[int64]int64{7: 2},
		permsByRole: map[int64][]rbac.Permission{2: {{Resource: "support", Action: "view"}}},
	}
	r := NewResolver(profiles, rbac.NewEvaluator(store, nil), nil, Options{}, nil)

	p, err := r.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"support.view"}, p.Permissions)
}

func TestInvalidateDropsSingleSnapshot(t *testing.T) {
	r, profiles, _, _ := newTestResolver(t, Options{})
	ctx := context.Background()

	_, err := r.Resolve(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, r.Invalidate(ctx, 7))

	_, err = r.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, profiles.loads)
}

func TestInvalidateAllDropsEverySnapshot(t *testing.T) {
	r, profiles, store, _ := newTestResolver(t, Options{})
	ctx := context.Background()

	_, err := r.Resolve(ctx, 7)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, 9)
	require.NoError(t, err)
	require.NoError(t, r.InvalidateAll(ctx))

	// Permission edit on the Support role lands for user 7 on re-resolution.
	store.permsByRole[2] = append(store.permsByRole[2], rbac.Permission{ID: 4, Resource: "products", Action: "view"})
	p, err := r.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.Contains(t, p.Permissions, "products.view")
	assert.Equal(t, 3, profiles.loads)
}

func TestAdminBypassSkipsPermissionStore(t *testing.T) {
	r, _, store, _ := newTestResolver(t, Options{AdminBypass: true, AdminRoleName: "Administrator"})

	p, err := r.Resolve(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, shared.AllScopes(), p.Permissions)
	assert.Zero(t, store.listCalls)
}

func TestAdminBypassDisabledReadsStore(t *testing.T) {
	r, _, store, _ := newTestResolver(t, Options{AdminRoleName: "Administrator"})

	p, err := r.Resolve(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"all.all"}, p.Permissions)
	assert.Equal(t, 1, store.listCalls)
}

func TestResolveCurrentRequiresSession(t *testing.T) {
	r, _, _, _ := newTestResolver(t, Options{})

	_, err := r.ResolveCurrent(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestResolveCurrentReadsSessionUser(t *testing.T) {
	r, _, _, _ := newTestResolver(t, Options{})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sm := shared.NewSessionManager(client, "bazaar_session", "test-secret", time.Hour, false)
	sess, err := sm.Load(context.Background(), httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	sess.SetUser("7")
	ctx := shared.ContextWithSession(context.Background(), sess)

	p, err := r.ResolveCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.UserID)

	sess.SetUser("not-a-number")
	_, err = r.ResolveCurrent(shared.ContextWithSession(context.Background(), sess))
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestSubjectAdaptsSnapshot(t *testing.T) {
	r, _, _, _ := newTestResolver(t, Options{})

	subject, err := r.Subject(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), subject.UserID)
	assert.Equal(t, "Support", subject.RoleName)
	assert.True(t, subject.Holds(rbac.Capability{Resource: "support", Action: "view"}))
	assert.False(t, subject.Holds(rbac.Capability{Resource: "roles", Action: "manage"}))
}

func TestResolveProfileStoreFailure(t *testing.T) {
	r, profiles, _, _ := newTestResolver(t, Options{})
	profiles.err = errors.New("profiles down")

	_, err := r.Resolve(context.Background(), 7)
	assert.ErrorContains(t, err, "profiles down")
}
