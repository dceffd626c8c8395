package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
)

// RoleRepository provides data access for project roles and memberships.
type RoleRepository interface {
	List(ctx context.Context, projectID uuid.UUID) ([]*models.Role, error)
	Create(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, projectID uuid.UUID, name string) error

	AddMember(ctx context.Context, projectID uuid.UUID, roleName, userID string) error
	RemoveMember(ctx context.Context, projectID uuid.UUID, roleName, userID string) error
	ListMembers(ctx context.Context, projectID uuid.UUID, roleName string) ([]*models.RoleMember, error)

	// RolesForUser returns the names of roles the user belongs to.
	RolesForUser(ctx context.Context, projectID uuid.UUID, userID string) ([]string, error)
}

type roleRepository struct {
	db Querier
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(db Querier) RoleRepository {
	return &roleRepository{db: db}
}

var _ RoleRepository = (*roleRepository)(nil)

func (r *roleRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.Role, error) {
	rows, err := r.db.Query(ctx, `
		SELECT project_id, name, description, created_at
		FROM engine_roles
		WHERE project_id = $1
		ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]*models.Role, 0)
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ProjectID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}
	return roles, nil
}

func (r *roleRepository) Create(ctx context.Context, role *models.Role) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO engine_roles (project_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		role.ProjectID, role.Name, role.Description,
	).Scan(&role.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role %q: %w", role.Name, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

func (r *roleRepository) Delete(ctx context.Context, projectID uuid.UUID, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM engine_roles WHERE project_id = $1 AND name = $2`, projectID, name)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %q: %w", name, apperrors.ErrNotFound)
	}
	return nil
}

func (r *roleRepository) AddMember(ctx context.Context, projectID uuid.UUID, roleName, userID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO engine_role_members (project_id, role_name, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`,
		projectID, roleName, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("role %q: %w", roleName, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to add role member: %w", err)
	}
	return nil
}

func (r *roleRepository) RemoveMember(ctx context.Context, projectID uuid.UUID, roleName, userID string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM engine_role_members
		WHERE project_id = $1 AND role_name = $2 AND user_id = $3`,
		projectID, roleName, userID)
	if err != nil {
		return fmt.Errorf("failed to remove role member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %q of role %q: %w", userID, roleName, apperrors.ErrNotFound)
	}
	return nil
}

func (r *roleRepository) ListMembers(ctx context.Context, projectID uuid.UUID, roleName string) ([]*models.RoleMember, error) {
	rows, err := r.db.Query(ctx, `
		SELECT project_id, role_name, user_id, created_at
		FROM engine_role_members
		WHERE project_id = $1 AND role_name = $2
		ORDER BY user_id`, projectID, roleName)
	if err != nil {
		return nil, fmt.Errorf("failed to list role members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.RoleMember, 0)
	for rows.Next() {
		var m models.RoleMember
		if err := rows.Scan(&m.ProjectID, &m.RoleName, &m.UserID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role members: %w", err)
	}
	return members, nil
}

func (r *roleRepository) RolesForUser(ctx context.Context, projectID uuid.UUID, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT role_name
		FROM engine_role_members
		WHERE project_id = $1 AND user_id = $2
		ORDER BY role_name`, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user roles: %w", err)
	}
	return roles, nil
}
