package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarhq/bazaar-admin/internal/shared"
	_ "github.com/bazaarhq/bazaar-admin/testing"
)

type stubSubjects struct {
	subject *Subject
	err     error
}

func (s *stubSubjects) Subject(ctx context.Context, userID int64) (*Subject, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.subject, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithUser(t *testing.T, userID string) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireAllWithoutSession(t *testing.T) {
	mw := Middleware{Subjects: &stubSubjects{}}
	handler := mw.RequireAll("users.view")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/roles", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireAllWithoutUser(t *testing.T) {
	mw := Middleware{Subjects: &stubSubjects{}}
	handler := mw.RequireAll("users.view")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser(t, ""))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireAllGranted(t *testing.T) {
	mw := Middleware{Subjects: &stubSubjects{subject: &Subject{UserID: 3, RoleName: "Support", Permissions: []string{"users.view"}}}}
	handler := mw.RequireAll("users.view")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser(t, "3"))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAllDenied(t *testing.T) {
	mw := Middleware{Subjects: &stubSubjects{subject: &Subject{UserID: 3, RoleName: "Support", Permissions: []string{"support.view"}}}}
	handler := mw.RequireAll("roles.manage")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser(t, "3"))
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireAllFailsClosedOnResolverError(t *testing.T) {
	mw := Middleware{Subjects: &stubSubjects{err: errors.New("connection refused")}}
	handler := mw.RequireAll("users.view")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser(t, "3"))
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireAllMalformedLiteral(t *testing.T) {
	mw := Middleware{Subjects: &stubSubjects{subject: &Subject{UserID: 3}}}
	handler := mw.RequireAll("usersview")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser(t, "3"))
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestRequireAllEmptyRequirement(t *testing.T) {
	mw := Middleware{Subjects: &stubSubjects{subject: &Subject{UserID: 3, RoleName: "Viewer"}}}
	handler := mw.RequireAll()(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser(t, "3"))
	assert.Equal(t, http.StatusOK, res.Code)
}
