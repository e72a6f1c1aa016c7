package rbac

import (
	"context"
	"errors"
	"strings"
)

// Registry manages role lifecycle with the protection invariants the console
// relies on: system roles keep their name and cannot be deleted, and a role
// referenced by users blocks deletion until those users are reassigned.
type Registry struct {
	store Store
}

// NewRegistry constructs a Registry backed by the provided store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// ListRoles returns all roles ordered by name.
func (r *Registry) ListRoles(ctx context.Context) ([]Role, error) {
	return r.store.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (r *Registry) GetRole(ctx context.Context, id int64) (Role, error) {
	return r.store.GetRole(ctx, id)
}

// ListPermissions returns the permission catalog.
func (r *Registry) ListPermissions(ctx context.Context) ([]Permission, error) {
	return r.store.ListPermissions(ctx)
}

// ListRolePermissions returns the permission set attached to a role.
func (r *Registry) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return r.store.ListPermissionsForRole(ctx, roleID)
}

// CreateRole inserts a role and attaches the given permission set. Roles are
// never created implicitly; every role passes through here or the seed script.
func (r *Registry) CreateRole(ctx context.Context, name, description string, isSystemRole bool, permissionIDs []int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, &ValidationError{Field: "name", Reason: "required"}
	}
	role, err := r.store.InsertRole(ctx, name, strings.TrimSpace(description), isSystemRole)
	if err != nil {
		return Role{}, err
	}
	if len(permissionIDs) > 0 {
		if err := r.store.ReplacePermissionsForRole(ctx, role.ID, permissionIDs); err != nil {
			return Role{}, err
		}
	}
	return role, nil
}

// UpdateRole updates a role and replaces its permission set. Renaming a system
// role fails with ErrImmutableField; its description and permissions stay
// editable. The permission set is replaced wholesale, never merged.
func (r *Registry) UpdateRole(ctx context.Context, id int64, name, description string, permissionIDs []int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, &ValidationError{Field: "name", Reason: "required"}
	}
	existing, err := r.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if existing.IsSystemRole && name != existing.Name {
		return Role{}, ErrImmutableField
	}
	role, err := r.store.UpdateRoleRow(ctx, id, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, err
	}
	if permissionIDs != nil {
		if err := r.store.ReplacePermissionsForRole(ctx, id, permissionIDs); err != nil {
			return Role{}, err
		}
	}
	return role, nil
}

// DeleteRole removes a role and its association rows. System roles and roles
// still referenced by users are protected.
func (r *Registry) DeleteRole(ctx context.Context, id int64) error {
	role, err := r.store.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return ErrSystemRoleProtected
	}
	count, err := r.store.CountUsersWithRole(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &RoleInUseError{RoleID: id, Users: count}
	}
	return r.store.DeleteRoleRow(ctx, id)
}

// AssignUserRole points a user at a role after verifying the role exists.
func (r *Registry) AssignUserRole(ctx context.Context, userID, roleID int64) error {
	if _, err := r.store.GetRole(ctx, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidRole
		}
		return err
	}
	return r.store.SetUserRole(ctx, userID, roleID)
}
