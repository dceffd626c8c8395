package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
)

// EndpointRepository provides data access for endpoint definitions.
type EndpointRepository interface {
	Create(ctx context.Context, def *models.EndpointDefinition) error
	Update(ctx context.Context, def *models.EndpointDefinition) error
	Delete(ctx context.Context, projectID, id uuid.UUID) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.EndpointDefinition, error)
}

type endpointRepository struct {
	db Querier
}

// NewEndpointRepository creates a new EndpointRepository.
func NewEndpointRepository(db Querier) EndpointRepository {
	return &endpointRepository{db: db}
}

var _ EndpointRepository = (*endpointRepository)(nil)

const endpointColumns = `id, project_id, method, path, sql, description,
	is_active, is_protected, allowed_roles, params, created_at, updated_at`

func (r *endpointRepository) Create(ctx context.Context, def *models.EndpointDefinition) error {
	sql := `
		INSERT INTO engine_endpoints (` + endpointColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, sql,
		def.ID, def.ProjectID, def.Method, def.Path, def.SQL, def.Description,
		def.IsActive, def.IsProtected, rolesOrEmpty(def.AllowedRoles), paramsOrEmpty(def.Params),
		def.CreatedAt, def.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("endpoint %s already exists: %w", def.ID, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create endpoint: %w", err)
	}

	return nil
}

func (r *endpointRepository) Update(ctx context.Context, def *models.EndpointDefinition) error {
	sql := `
		UPDATE engine_endpoints
		SET method = $3, path = $4, sql = $5, description = $6,
		    is_active = $7, is_protected = $8, allowed_roles = $9, params = $10,
		    updated_at = $11
		WHERE project_id = $1 AND id = $2`

	tag, err := r.db.Exec(ctx, sql,
		def.ProjectID, def.ID, def.Method, def.Path, def.SQL, def.Description,
		def.IsActive, def.IsProtected, rolesOrEmpty(def.AllowedRoles), paramsOrEmpty(def.Params),
		def.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update endpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("endpoint %s: %w", def.ID, apperrors.ErrNotFound)
	}

	return nil
}

func (r *endpointRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM engine_endpoints WHERE project_id = $1 AND id = $2`, projectID, id)
	if err != nil {
		return fmt.Errorf("failed to delete endpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("endpoint %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *endpointRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.EndpointDefinition, error) {
	sql := `
		SELECT ` + endpointColumns + `
		FROM engine_endpoints
		WHERE project_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, sql, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()

	defs := make([]*models.EndpointDefinition, 0)
	for rows.Next() {
		def, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating endpoints: %w", err)
	}

	return defs, nil
}

func scanEndpoint(row pgx.Row) (*models.EndpointDefinition, error) {
	var def models.EndpointDefinition
	err := row.Scan(
		&def.ID, &def.ProjectID, &def.Method, &def.Path, &def.SQL, &def.Description,
		&def.IsActive, &def.IsProtected, &def.AllowedRoles, &def.Params,
		&def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan endpoint: %w", err)
	}
	return &def, nil
}

func rolesOrEmpty(roles []string) []string {
	if roles == nil {
		return []string{}
	}
	return roles
}

func paramsOrEmpty(params []models.ParameterSpec) []models.ParameterSpec {
	if params == nil {
		return []models.ParameterSpec{}
	}
	return params
}
