package rbac

import (
	"context"
	"log/slog"
)

// Evaluator answers capability checks for a user. It fails closed: any store
// failure during a check is logged and reported as a denial, never propagated
// to block unrelated request flows.
type Evaluator struct {
	store  Store
	logger *slog.Logger
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(store Store, logger *slog.Logger) *Evaluator {
	return &Evaluator{store: store, logger: logger}
}

// HasPermission reports whether the user's role grants (resource, action).
// Users without a role are denied everything; the wildcard permission grants
// everything.
func (e *Evaluator) HasPermission(ctx context.Context, userID int64, resource, action string) bool {
	return e.HasCapability(ctx, userID, Capability{Resource: resource, Action: action})
}

// HasCapability is HasPermission over a parsed capability.
func (e *Evaluator) HasCapability(ctx context.Context, userID int64, c Capability) bool {
	roleID, hasRole, err := e.store.UserRoleID(ctx, userID)
	if err != nil {
		e.warn("resolve user role", userID, err)
		return false
	}
	if !hasRole {
		return false
	}
	superuser, err := e.store.RoleHasCapability(ctx, roleID, WildcardResource, WildcardAction)
	if err != nil {
		e.warn("wildcard check", userID, err)
		return false
	}
	if superuser {
		return true
	}
	granted, err := e.store.RoleHasCapability(ctx, roleID, c.Resource, c.Action)
	if err != nil {
		e.warn("capability check", userID, err)
		return false
	}
	return granted
}

// HasAllCapabilities evaluates the list in order and short-circuits on the
// first denial. The empty list is vacuously granted.
func (e *Evaluator) HasAllCapabilities(ctx context.Context, userID int64, caps []Capability) bool {
	for _, c := range caps {
		if !e.HasCapability(ctx, userID, c) {
			return false
		}
	}
	return true
}

// CheckAll parses and evaluates raw "resource.action" strings. Malformed input
// surfaces as a ValidationError rather than a deny, so callers can distinguish
// bad requests from missing grants.
func (e *Evaluator) CheckAll(ctx context.Context, userID int64, capabilities []string) (bool, error) {
	caps, err := ParseCapabilities(capabilities)
	if err != nil {
		return false, err
	}
	return e.HasAllCapabilities(ctx, userID, caps), nil
}

// UserPermissions returns the full permission set of the user's role, used to
// drive UI affordances without a live check per action. Users without a role
// get an empty set.
func (e *Evaluator) UserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	roleID, hasRole, err := e.store.UserRoleID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !hasRole {
		return []Permission{}, nil
	}
	perms, err := e.store.ListPermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []Permission{}
	}
	return perms, nil
}

func (e *Evaluator) warn(op string, userID int64, err error) {
	if e.logger != nil {
		e.logger.Warn("rbac check failed closed", slog.String("op", op), slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
