package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested role or permission does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrInvalidRole indicates an assignment referenced a role that does not exist.
	ErrInvalidRole = errors.New("rbac: role does not exist")
	// ErrImmutableField indicates an attempt to rename a system role.
	ErrImmutableField = errors.New("rbac: system role name cannot be changed")
	// ErrSystemRoleProtected indicates an attempt to delete a system role.
	ErrSystemRoleProtected = errors.New("rbac: system roles cannot be deleted")
)

// ValidationError reports malformed input to a registry or evaluator operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rbac: invalid %s: %s", e.Field, e.Reason)
}

// RoleInUseError blocks deletion of a role while users still reference it. The
// count feeds the operator-facing message verbatim.
type RoleInUseError struct {
	RoleID int64
	Users  int
}

func (e *RoleInUseError) Error() string {
	return fmt.Sprintf("rbac: %d users are currently assigned to this role", e.Users)
}
