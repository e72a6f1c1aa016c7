package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bazaarhq/bazaar-admin/internal/rbac"
	"github.com/bazaarhq/bazaar-admin/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	registry  *rbac.Registry
	audit     *shared.AuditRecorder
	snapshots rbac.SnapshotInvalidator
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, registry *rbac.Registry, audit *shared.AuditRecorder, snapshots rbac.SnapshotInvalidator, mw rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		registry:  registry,
		audit:     audit,
		snapshots: snapshots,
		validator: validator.New(),
		rbac:      mw,
	}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermUsersView))
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermUsersEdit))
		r.Put("/{userID}/status", h.updateStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesManage))
		r.Put("/{userID}/role", h.assignRole)
	})
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

type userBody struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	RoleName  string    `json:"role_name,omitempty"`
	HasRole   bool      `json:"has_role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]userBody, 0, len(users))
	for _, user := range users {
		out = append(out, toUserBody(user))
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"user": toUserBody(user)})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !h.bind(w, r, &req) {
		return
	}
	user, err := h.service.UpdateUserStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	_ = h.audit.Record(r.Context(), shared.AuditEntry{
		ActorID:  h.actorID(r),
		Action:   "user.status",
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"status": user.Status},
	})
	shared.RespondJSON(w, http.StatusOK, map[string]any{"user": toUserBody(user)})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req assignRoleRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.registry.AssignUserRole(r.Context(), id, req.RoleID); err != nil {
		h.respondError(w, err)
		return
	}
	_ = h.audit.Record(r.Context(), shared.AuditEntry{
		ActorID:  h.actorID(r),
		Action:   "user.role_assign",
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"role_id": req.RoleID},
	})
	h.dropSnapshot(r.Context(), id)
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"user": toUserBody(user)})
}

// dropSnapshot flushes the cached principal for a reassigned user so the new
// role takes effect on their next request.
func (h *Handler) dropSnapshot(ctx context.Context, userID int64) {
	if h.snapshots == nil {
		return
	}
	if err := h.snapshots.Invalidate(ctx, userID); err != nil {
		h.logger.Warn("principal snapshot drop failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (h *Handler) bind(w http.ResponseWriter, r *http.Request, req any) bool {
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

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		shared.RespondError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func (h *Handler) actorID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidStatus):
		shared.RespondError(w, http.StatusUnprocessableEntity, "unknown account status")
	case errors.Is(err, rbac.ErrInvalidRole):
		shared.RespondError(w, http.StatusUnprocessableEntity, "role does not exist")
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, rbac.ErrNotFound):
		shared.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, shared.ErrStoreUnavailable):
		h.logger.Error("user store failure", slog.Any("error", err))
		shared.RespondError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		h.logger.Error("user management failure", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func toUserBody(user User) userBody {
	return userBody{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Status:    user.Status,
		RoleName:  user.RoleName,
		HasRole:   user.HasRole,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
