package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bazaarhq/bazaar-admin/internal/shared"
)

// SubjectSource resolves the authorization snapshot for a user. Implemented by
// the principal resolver; stubbed in handler tests.
type SubjectSource interface {
	Subject(ctx context.Context, userID int64) (*Subject, error)
}

// Middleware wires the route guard into chi handler chains.
type Middleware struct {
	Subjects SubjectSource
	Guard    *Guard
	Logger   *slog.Logger
}

// RequireAll ensures the current user holds every listed capability. The
// capability strings are parsed once at registration; a malformed literal is a
// wiring bug and the route answers 500 until it is fixed rather than silently
// denying or allowing.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	caps, parseErr := ParseCapabilities(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if parseErr != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac guard misconfigured", slog.String("path", r.URL.Path), slog.Any("error", parseErr))
				}
				shared.RespondError(w, http.StatusInternalServerError, "route guard misconfigured")
				return
			}
			userID, ok := m.currentUserID(r)
			if !ok {
				shared.RespondError(w, http.StatusUnauthorized, DecisionUnauthenticated.String())
				return
			}
			subject, err := m.Subjects.Subject(r.Context(), userID)
			if err != nil {
				// Fail closed: a check we cannot complete is a denial.
				if m.Logger != nil {
					m.Logger.Warn("rbac subject resolution failed", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				shared.RespondError(w, http.StatusForbidden, DecisionUnauthorized.String())
				return
			}
			guard := m.Guard
			if guard == nil {
				guard = NewGuard("")
			}
			switch guard.Evaluate(subject, caps) {
			case DecisionAuthorized:
				next.ServeHTTP(w, r)
			case DecisionUnauthenticated:
				shared.RespondError(w, http.StatusUnauthorized, DecisionUnauthenticated.String())
			default:
				shared.RespondError(w, http.StatusForbidden, DecisionUnauthorized.String())
			}
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
