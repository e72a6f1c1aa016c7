package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaarhq/bazaar-admin/internal/shared"
)

// Store defines persistence for roles, permissions and their associations.
type Store interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	EnsurePermission(ctx context.Context, resource, action string) (Permission, error)
	ListPermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error)
	ReplacePermissionsForRole(ctx context.Context, roleID int64, permissionIDs []int64) error

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	InsertRole(ctx context.Context, name, description string, isSystemRole bool) (Role, error)
	UpdateRoleRow(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRoleRow(ctx context.Context, id int64) error

	CountUsersWithRole(ctx context.Context, roleID int64) (int, error)
	SetUserRole(ctx context.Context, userID, roleID int64) error
	UserRoleID(ctx context.Context, userID int64) (int64, bool, error)
	RoleHasCapability(ctx context.Context, roleID int64, resource, action string) (bool, error)
}

// PGStore provides PostgreSQL backed persistence.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store over the provided pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

// ListPermissions returns the full catalog ordered by (resource, action) so
// listings render deterministically.
func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, resource, action FROM permissions ORDER BY resource, action`)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// EnsurePermission upserts a catalog entry, returning the stored row.
func (s *PGStore) EnsurePermission(ctx context.Context, resource, action string) (Permission, error) {
	var perm Permission
	err := s.pool.QueryRow(ctx, `
		INSERT INTO permissions (resource, action) VALUES ($1, $2)
		ON CONFLICT (resource, action) DO UPDATE SET resource = EXCLUDED.resource
		RETURNING id, resource, action`, resource, action).Scan(&perm.ID, &perm.Resource, &perm.Action)
	if err != nil {
		return Permission{}, storeErr(err)
	}
	return perm, nil
}

// ListPermissionsForRole returns the permission set attached to a role. A role
// without permissions yields an empty slice, not an error.
func (s *PGStore) ListPermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.resource, p.action
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.resource, p.action`, roleID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// ReplacePermissionsForRole swaps the role's association rows for the given set
// inside one transaction. Either the full new set lands or the previous set
// survives untouched; the role is never observable with a partial set.
func (s *PGStore) ReplacePermissionsForRole(ctx context.Context, roleID int64, permissionIDs []int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return storeErr(err)
	}
	for _, permissionID := range permissionIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
			ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return &ValidationError{Field: "permission_ids", Reason: fmt.Sprintf("permission %d does not exist", permissionID)}
			}
			return storeErr(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// ListRoles returns all roles ordered by name.
func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, is_system_role, created_at, updated_at
		FROM roles ORDER BY name`)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, storeErr(err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (s *PGStore) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, is_system_role, created_at, updated_at
		FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, storeErr(err)
	}
	return role, nil
}

// InsertRole inserts a new role row.
func (s *PGStore) InsertRole(ctx context.Context, name, description string, isSystemRole bool) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, is_system_role, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, name, description, is_system_role, created_at, updated_at`,
		name, description, isSystemRole).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, &ValidationError{Field: "name", Reason: "a role with this name already exists"}
		}
		return Role{}, storeErr(err)
	}
	return role, nil
}

// UpdateRoleRow updates name and description for a role.
func (s *PGStore) UpdateRoleRow(ctx context.Context, id int64, name, description string) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, is_system_role, created_at, updated_at`,
		id, name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, &ValidationError{Field: "name", Reason: "a role with this name already exists"}
		}
		return Role{}, storeErr(err)
	}
	return role, nil
}

// DeleteRoleRow removes the role and, through ON DELETE CASCADE, its
// association rows. Returns ErrNotFound if nothing was deleted.
func (s *PGStore) DeleteRoleRow(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUsersWithRole returns how many profiles currently reference the role.
func (s *PGStore) CountUsersWithRole(ctx context.Context, roleID int64) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles WHERE role_id = $1`, roleID).Scan(&count); err != nil {
		return 0, storeErr(err)
	}
	return count, nil
}

// SetUserRole points the user's profile at the role.
func (s *PGStore) SetUserRole(ctx context.Context, userID, roleID int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE profiles SET role_id = $2, updated_at = NOW() WHERE id = $1`, userID, roleID)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UserRoleID resolves the user's assigned role. The second return is false for
// users without a role.
func (s *PGStore) UserRoleID(ctx context.Context, userID int64) (int64, bool, error) {
	var roleID *int64
	err := s.pool.QueryRow(ctx, `SELECT role_id FROM profiles WHERE id = $1`, userID).Scan(&roleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, storeErr(err)
	}
	if roleID == nil {
		return 0, false, nil
	}
	return *roleID, true, nil
}

// RoleHasCapability reports whether the role holds the exact (resource, action)
// permission.
func (s *PGStore) RoleHasCapability(ctx context.Context, roleID int64, resource, action string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM role_permissions rp
			JOIN permissions p ON p.id = rp.permission_id
			WHERE rp.role_id = $1 AND p.resource = $2 AND p.action = $3
		)`, roleID, resource, action).Scan(&exists)
	if err != nil {
		return false, storeErr(err)
	}
	return exists, nil
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Resource, &perm.Action); err != nil {
			return nil, storeErr(err)
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return perms, nil
}

// storeErr tags backend failures so callers can treat them uniformly as a
// transient store outage.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
}
