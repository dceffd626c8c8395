package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/repositories"
)

var roleNameRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.:-]{0,62}$`)

// RoleService manages project roles and who holds them.
type RoleService interface {
	List(ctx context.Context) ([]*models.Role, error)
	Create(ctx context.Context, name, description string) (*models.Role, error)
	Delete(ctx context.Context, name string) error
	ListMembers(ctx context.Context, roleName string) ([]*models.RoleMember, error)
	AddMember(ctx context.Context, roleName, userID string) error
	RemoveMember(ctx context.Context, roleName, userID string) error
}

type roleService struct {
	repo      repositories.RoleRepository
	projectID uuid.UUID
	logger    *zap.Logger
}

// NewRoleService creates a new RoleService.
func NewRoleService(repo repositories.RoleRepository, projectID uuid.UUID, logger *zap.Logger) RoleService {
	return &roleService{
		repo:      repo,
		projectID: projectID,
		logger:    logger.Named("role-service"),
	}
}

var _ RoleService = (*roleService)(nil)

func (s *roleService) List(ctx context.Context) ([]*models.Role, error) {
	return s.repo.List(ctx, s.projectID)
}

func (s *roleService) Create(ctx context.Context, name, description string) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if !roleNameRegex.MatchString(name) {
		return nil, invalidDefinition("role name %q must be 1-63 letters, digits or _ . : -", name)
	}

	role := &models.Role{
		ProjectID:   s.projectID,
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.repo.Create(ctx, role); err != nil {
		return nil, err
	}

	s.logger.Info("Role created", zap.String("role", name))
	return role, nil
}

func (s *roleService) Delete(ctx context.Context, name string) error {
	if err := s.repo.Delete(ctx, s.projectID, name); err != nil {
		return err
	}
	s.logger.Info("Role deleted", zap.String("role", name))
	return nil
}

func (s *roleService) ListMembers(ctx context.Context, roleName string) ([]*models.RoleMember, error) {
	return s.repo.ListMembers(ctx, s.projectID, roleName)
}

func (s *roleService) AddMember(ctx context.Context, roleName, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return invalidDefinition("user id is required")
	}
	if err := s.repo.AddMember(ctx, s.projectID, roleName, userID); err != nil {
		return err
	}
	s.logger.Info("Role member added", zap.String("role", roleName), zap.String("user_id", userID))
	return nil
}

func (s *roleService) RemoveMember(ctx context.Context, roleName, userID string) error {
	if err := s.repo.RemoveMember(ctx, s.projectID, roleName, userID); err != nil {
		return err
	}
	s.logger.Info("Role member removed", zap.String("role", roleName), zap.String("user_id", userID))
	return nil
}
