package principal

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarhq/bazaar-admin/internal/rbac"
	"github.com/bazaarhq/bazaar-admin/internal/shared"
)

// Handler serves the current-principal endpoints backing the console shell.
type Handler struct {
	logger    *slog.Logger
	resolver  *Resolver
	evaluator *rbac.Evaluator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver, evaluator *rbac.Evaluator) *Handler {
	return &Handler{logger: logger, resolver: resolver, evaluator: evaluator}
}

// MountRoutes registers principal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.current)
	r.Get("/can", h.can)
	r.Post("/refresh", h.refresh)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	p, err := h.resolver.ResolveCurrent(r.Context())
	if err != nil {
		h.respondResolveError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"principal": p})
}

// can answers a live capability check for the current user, so the UI can gate
// a one-off action without refetching the whole snapshot.
func (h *Handler) can(w http.ResponseWriter, r *http.Request) {
	p, err := h.resolver.ResolveCurrent(r.Context())
	if err != nil {
		h.respondResolveError(w, err)
		return
	}
	capability := r.URL.Query().Get("capability")
	granted, err := h.evaluator.CheckAll(r.Context(), p.UserID, []string{capability})
	if err != nil {
		var vErr *rbac.ValidationError
		if errors.As(err, &vErr) {
			shared.RespondError(w, http.StatusUnprocessableEntity, vErr.Error())
			return
		}
		h.logger.Error("capability check", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"capability": capability, "granted": granted})
}

// refresh drops the cached snapshot and resolves it again. The UI calls this
// after any role-affecting mutation.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	p, err := h.resolver.ResolveCurrent(r.Context())
	if err != nil {
		h.respondResolveError(w, err)
		return
	}
	if err := h.resolver.Invalidate(r.Context(), p.UserID); err != nil {
		h.logger.Warn("invalidate principal", slog.Int64("user_id", p.UserID), slog.Any("error", err))
	}
	fresh, err := h.resolver.Resolve(r.Context(), p.UserID)
	if err != nil {
		h.respondResolveError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"principal": fresh})
}

func (h *Handler) respondResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoActiveSession):
		shared.RespondError(w, http.StatusUnauthorized, "no active session")
	case errors.Is(err, shared.ErrNotFound):
		shared.RespondError(w, http.StatusUnauthorized, "no active session")
	case errors.Is(err, shared.ErrStoreUnavailable):
		h.logger.Error("resolve principal store failure", slog.Any("error", err))
		shared.RespondError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		h.logger.Error("resolve principal", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}
