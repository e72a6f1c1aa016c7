package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarhq/bazaar-admin/internal/shared"
)

// PermissionsHandler serves the read-only permission catalog.
type PermissionsHandler struct {
	logger   *slog.Logger
	registry *Registry
	rbac     Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, registry *Registry, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, registry: registry, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesView))
		r.Get("/", h.listPermissions)
	})
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.registry.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		shared.RespondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	out := make([]permissionBody, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionBody{ID: p.ID, Resource: p.Resource, Action: p.Action})
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"permissions": out})
}
