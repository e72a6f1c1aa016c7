package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCaps(t *testing.T, raw ...string) []Capability {
	t.Helper()
	caps, err := ParseCapabilities(raw)
	require.NoError(t, err)
	return caps
}

func TestGuardUnauthenticatedWithoutSubject(t *testing.T) {
	g := NewGuard("")
	assert.Equal(t, DecisionUnauthenticated, g.Evaluate(nil, mustCaps(t, "users.view")))
}

func TestGuardEmptyRequirementAuthorizes(t *testing.T) {
	g := NewGuard("")
	subject := &Subject{UserID: 1, RoleName: "Viewer"}
	assert.Equal(t, DecisionAuthorized, g.Evaluate(subject, nil))
}

func TestGuardChecksSnapshot(t *testing.T) {
	g := NewGuard("")
	subject := &Subject{UserID: 1, RoleName: "Support", Permissions: []string{"support.view"}}

	assert.Equal(t, DecisionAuthorized, g.Evaluate(subject, mustCaps(t, "support.view")))
	assert.Equal(t, DecisionUnauthorized, g.Evaluate(subject, mustCaps(t, "support.view", "roles.manage")))
}

func TestGuardWildcardSnapshot(t *testing.T) {
	g := NewGuard("")
	subject := &Subject{UserID: 1, RoleName: "Root", Permissions: []string{"all.all"}}
	assert.Equal(t, DecisionAuthorized, g.Evaluate(subject, mustCaps(t, "products.moderate", "roles.manage")))
}

func TestGuardAdminRoleShortCircuit(t *testing.T) {
	g := NewGuard("Administrator")
	subject := &Subject{UserID: 1, RoleName: "Administrator"}
	assert.Equal(t, DecisionAuthorized, g.Evaluate(subject, mustCaps(t, "roles.manage")))

	// With the shortcut disabled the same subject is evaluated uniformly.
	strict := NewGuard("")
	assert.Equal(t, DecisionUnauthorized, strict.Evaluate(subject, mustCaps(t, "roles.manage")))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "checking", DecisionChecking.String())
	assert.Equal(t, "authorized", DecisionAuthorized.String())
	assert.Equal(t, "unauthorized", DecisionUnauthorized.String())
	assert.Equal(t, "unauthenticated", DecisionUnauthenticated.String())
}
