package users

import (
	"context"
	"errors"

	"github.com/bazaarhq/bazaar-admin/internal/shared"
)

// ErrInvalidStatus rejects status values outside the known account states.
var ErrInvalidStatus = errors.New("users: invalid status")

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one account.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateUserStatus folds the incoming status to its canonical casing and
// persists it. Unknown states are rejected before touching the store.
func (s *Service) UpdateUserStatus(ctx context.Context, id int64, status string) (User, error) {
	canonical := shared.CanonicalStatus(status)
	if !shared.ValidStatus(canonical) {
		return User{}, ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, id, canonical); err != nil {
		return User{}, err
	}
	return s.repo.GetUser(ctx, id)
}
