package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// UserService exposes admin operations over the identity store.
type UserService struct {
	users repository.UserRepository
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// ListUsers returns every known user. Admin only.
func (s *UserService) ListUsers(ctx context.Context, identity domain.Identity) ([]domain.User, error) {
	if err := requireAdmin(identity, "Only admins can list users."); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// PromoteToAdmin grants the admin role to a user. Admin only.
func (s *UserService) PromoteToAdmin(ctx context.Context, identity domain.Identity, userID string) (*domain.User, error) {
	if err := requireAdmin(identity, "Only admins can promote users."); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidationError("userId is required.")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, apperrors.NewNotFound("User not found.")
	}

	user, err := s.users.UpdateRole(ctx, userID, domain.RoleAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("User not found.")
		}
		return nil, apperrors.NewPersistenceError(err)
	}
	return user, nil
}

func requireAdmin(identity domain.Identity, message string) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}
	if !identity.IsAdmin() {
		return apperrors.NewForbidden(message)
	}
	return nil
}
