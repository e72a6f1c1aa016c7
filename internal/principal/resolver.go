package principal

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/bazaarhq/bazaar-admin/internal/rbac"
	"github.com/bazaarhq/bazaar-admin/internal/shared"
)

// ErrNoActiveSession indicates principal resolution without an authenticated
// session.
var ErrNoActiveSession = errors.New("principal: no active session")

// Principal is the "current user with permissions" snapshot consumed by the UI
// and the route guard. It is read-mostly: callers re-resolve after any role or
// permission-affecting mutation.
type Principal struct {
	UserID      int64    `json:"user_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	RoleName    string   `json:"role_name"`
	Permissions []string `json:"permissions"`
}

// Profile is the raw identity record supplied by the profile store.
type Profile struct {
	UserID   int64
	Email    string
	Name     string
	Status   string
	RoleName string
	HasRole  bool
}

// ProfileSource loads identity records. Returns shared.ErrNotFound for unknown
// users.
type ProfileSource interface {
	ProfileByID(ctx context.Context, userID int64) (Profile, error)
}

// Options tune resolver behaviour.
type Options struct {
	// AdminBypass short-circuits the distinguished administrator role to the
	// fixed platform capability list instead of consulting the permission
	// store. Kept only for compatibility with older deployments; the seeded
	// wildcard permission makes it redundant.
	AdminBypass bool
	// AdminRoleName names the distinguished administrator role.
	AdminRoleName string
}

// Resolver maps an authenticated principal to its role and permission set.
type Resolver struct {
	profiles  ProfileSource
	evaluator *rbac.Evaluator
	cache     *Cache
	opts      Options
	logger    *slog.Logger
	group     singleflight.Group
}

// NewResolver constructs a Resolver.
func NewResolver(profiles ProfileSource, evaluator *rbac.Evaluator, cache *Cache, opts Options, logger *slog.Logger) *Resolver {
	return &Resolver{
		profiles:  profiles,
		evaluator: evaluator,
		cache:     cache,
		opts:      opts,
		logger:    logger,
	}
}

// ResolveCurrent resolves the principal for the session carried by ctx.
func (r *Resolver) ResolveCurrent(ctx context.Context) (*Principal, error) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		return nil, ErrNoActiveSession
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return nil, ErrNoActiveSession
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, ErrNoActiveSession
	}
	return r.Resolve(ctx, userID)
}

// Resolve builds (or fetches) the snapshot for a user. Concurrent resolutions
// for the same user collapse into one load.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (*Principal, error) {
	if cached, err := r.cache.Get(ctx, userID); err == nil && cached != nil {
		return cached, nil
	} else if err != nil && r.logger != nil {
		r.logger.Warn("principal cache read", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	v, err, _ := r.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		return r.load(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Principal), nil
}

func (r *Resolver) load(ctx context.Context, userID int64) (*Principal, error) {
	profile, err := r.profiles.ProfileByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &Principal{
		UserID:   profile.UserID,
		Email:    profile.Email,
		Name:     profile.Name,
		RoleName: profile.RoleName,
	}

	if r.opts.AdminBypass && profile.HasRole && profile.RoleName == r.opts.AdminRoleName {
		p.Permissions = shared.AllScopes()
	} else {
		perms, err := r.evaluator.UserPermissions(ctx, userID)
		if err != nil {
			return nil, err
		}
		p.Permissions = make([]string, 0, len(perms))
		for _, perm := range perms {
			p.Permissions = append(p.Permissions, perm.String())
		}
	}

	if err := r.cache.Put(ctx, p); err != nil && r.logger != nil {
		r.logger.Warn("principal cache write", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	return p, nil
}

// Subject adapts the snapshot for the route guard middleware.
func (r *Resolver) Subject(ctx context.Context, userID int64) (*rbac.Subject, error) {
	p, err := r.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &rbac.Subject{UserID: p.UserID, RoleName: p.RoleName, Permissions: p.Permissions}, nil
}

// Invalidate drops one user's snapshot. Call after assigning that user a role.
func (r *Resolver) Invalidate(ctx context.Context, userID int64) error {
	return r.cache.Forget(ctx, userID)
}

// InvalidateAll drops every snapshot. Call after editing a role's permission
// set, which affects an unknown number of users.
func (r *Resolver) InvalidateAll(ctx context.Context) error {
	return r.cache.Bump(ctx)
}

var _ rbac.SubjectSource = (*Resolver)(nil)
