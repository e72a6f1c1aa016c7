package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/bazaarhq/bazaar-admin/internal/shared"
)

// SnapshotInvalidator drops cached principal snapshots after role or
// permission-set mutations. Implemented by the principal resolver.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
	InvalidateAll(ctx context.Context) error
}

// Handler exposes the role registry over JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	registry  *Registry
	audit     *shared.AuditRecorder
	snapshots SnapshotInvalidator
	validator *validator.Validate
	rbac      Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, registry *Registry, audit *shared.AuditRecorder, snapshots SnapshotInvalidator, rbac Middleware) *Handler {
	return &Handler{
		logger:    logger,
		registry:  registry,
		audit:     audit,
		snapshots: snapshots,
		validator: validator.New(),
		rbac:      rbac,
	}
}

// MountRoutes registers role management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesView))
		r.Get("/", h.listRoles)
		r.Get("/{roleID}", h.getRole)
		r.Get("/{roleID}/permissions", h.listRolePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesManage))
		r.Post("/", h.createRole)
		r.Put("/{roleID}", h.updateRole)
		r.Delete("/{roleID}", h.deleteRole)
	})
}

type roleRequest struct {
	Name          string  `json:"name" validate:"required,max=120"`
	Description   string  `json:"description" validate:"max=500"`
	IsSystemRole  bool    `json:"is_system_role"`
	PermissionIDs []int64 `json:"permission_ids" validate:"dive,gt=0"`
}

type roleResponse struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	IsSystemRole bool             `json:"is_system_role"`
	Permissions  []permissionBody `json:"permissions,omitempty"`
}

type permissionBody struct {
	ID       int64  `json:"id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.registry.ListRoles(r.Context())
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role, nil))
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var (
		role  Role
		perms []Permission
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		role, err = h.registry.GetRole(ctx, id)
		return err
	})
	g.Go(func() (err error) {
		perms, err = h.registry.ListRolePermissions(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		h.respondRegistryError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"role": toRoleResponse(role, perms)})
}

func (h *Handler) listRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if _, err := h.registry.GetRole(r.Context(), id); err != nil {
		h.respondRegistryError(w, err)
		return
	}
	perms, err := h.registry.ListRolePermissions(r.Context(), id)
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}
	out := make([]permissionBody, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionBody{ID: p.ID, Resource: p.Resource, Action: p.Action})
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"permissions": out})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !h.bindRoleRequest(w, r, &req) {
		return
	}
	role, err := h.registry.CreateRole(r.Context(), req.Name, req.Description, req.IsSystemRole, req.PermissionIDs)
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}
	_ = h.audit.RecordRoleChange(r.Context(), h.actorID(r), role.ID, "role.create", map[string]any{"name": role.Name})
	shared.RespondJSON(w, http.StatusCreated, map[string]any{"role": toRoleResponse(role, nil)})
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !h.bindRoleRequest(w, r, &req) {
		return
	}
	role, err := h.registry.UpdateRole(r.Context(), id, req.Name, req.Description, req.PermissionIDs)
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}
	_ = h.audit.RecordRoleChange(r.Context(), h.actorID(r), role.ID, "role.update", map[string]any{"name": role.Name})
	h.dropSnapshots(r.Context())
	shared.RespondJSON(w, http.StatusOK, map[string]any{"role": toRoleResponse(role, nil)})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := h.registry.DeleteRole(r.Context(), id); err != nil {
		h.respondRegistryError(w, err)
		return
	}
	_ = h.audit.RecordRoleChange(r.Context(), h.actorID(r), id, "role.delete", nil)
	h.dropSnapshots(r.Context())
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) bindRoleRequest(w http.ResponseWriter, r *http.Request, req *roleRequest) bool {
	if err := shared.DecodeJSON(r, req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validator.Struct(req); err != nil {
		fields := make(map[string]string)
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			for _, fe := range vErrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		shared.RespondFieldErrors(w, fields)
		return false
	}
	return true
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil || id <= 0 {
		shared.RespondError(w, http.StatusBadRequest, "invalid role id")
		return 0, false
	}
	return id, true
}

// dropSnapshots flushes every cached principal snapshot. Permission
// edits take effect for assigned users on their next request.
func (h *Handler) dropSnapshots(ctx context.Context) {
	if h.snapshots == nil {
		return
	}
	if err := h.snapshots.InvalidateAll(ctx); err != nil {
		h.logger.Warn("principal snapshot flush failed", slog.Any("error", err))
	}
}

func (h *Handler) actorID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}

func (h *Handler) respondRegistryError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	var inUse *RoleInUseError
	switch {
	case errors.As(err, &vErr):
		shared.RespondError(w, http.StatusUnprocessableEntity, vErr.Error())
	case errors.As(err, &inUse):
		shared.RespondError(w, http.StatusConflict, strconv.Itoa(inUse.Users)+" users are currently assigned to this role")
	case errors.Is(err, ErrImmutableField):
		shared.RespondError(w, http.StatusConflict, "system role name cannot be changed")
	case errors.Is(err, ErrSystemRoleProtected):
		shared.RespondError(w, http.StatusConflict, "system roles cannot be deleted")
	case errors.Is(err, ErrInvalidRole):
		shared.RespondError(w, http.StatusUnprocessableEntity, "role does not exist")
	case errors.Is(err, ErrNotFound), errors.Is(err, shared.ErrNotFound):
		shared.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, shared.ErrStoreUnavailable):
		h.logger.Error("role registry store failure", slog.Any("error", err))
		shared.RespondError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		h.logger.Error("role registry failure", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func toRoleResponse(role Role, perms []Permission) roleResponse {
	resp := roleResponse{
		ID:           role.ID,
		Name:         role.Name,
		Description:  role.Description,
		IsSystemRole: role.IsSystemRole,
	}
	for _, p := range perms {
		resp.Permissions = append(resp.Permissions, permissionBody{ID: p.ID, Resource: p.Resource, Action: p.Action})
	}
	return resp
}
