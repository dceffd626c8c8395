package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
)

// FunctionAccessRepository stores protection settings and bookkeeping
// timestamps for installed functions.
type FunctionAccessRepository interface {
	Get(ctx context.Context, projectID uuid.UUID, schema, name string) (*models.FunctionAccess, error)
	List(ctx context.Context, projectID uuid.UUID) ([]*models.FunctionAccess, error)
	// Upsert inserts or replaces the row for (schema, name). CreatedAt is
	// kept from an existing row.
	Upsert(ctx context.Context, projectID uuid.UUID, access *models.FunctionAccess) error
	Delete(ctx context.Context, projectID uuid.UUID, schema, name string) error
}

type functionAccessRepository struct {
	db Querier
}

// NewFunctionAccessRepository creates a new FunctionAccessRepository.
func NewFunctionAccessRepository(db Querier) FunctionAccessRepository {
	return &functionAccessRepository{db: db}
}

var _ FunctionAccessRepository = (*functionAccessRepository)(nil)

const functionAccessColumns = `schema_name, function_name, is_protected, allowed_roles,
	definition_hash, created_at, updated_at`

func (r *functionAccessRepository) Get(ctx context.Context, projectID uuid.UUID, schema, name string) (*models.FunctionAccess, error) {
	sql := `
		SELECT ` + functionAccessColumns + `
		FROM engine_function_access
		WHERE project_id = $1 AND schema_name = $2 AND function_name = $3`

	access, err := scanFunctionAccess(r.db.QueryRow(ctx, sql, projectID, schema, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("function access %s.%s: %w", schema, name, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get function access: %w", err)
	}
	return access, nil
}

func (r *functionAccessRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.FunctionAccess, error) {
	sql := `
		SELECT ` + functionAccessColumns + `
		FROM engine_function_access
		WHERE project_id = $1
		ORDER BY schema_name, function_name`

	rows, err := r.db.Query(ctx, sql, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list function access: %w", err)
	}
	defer rows.Close()

	result := make([]*models.FunctionAccess, 0)
	for rows.Next() {
		access, err := scanFunctionAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan function access: %w", err)
		}
		result = append(result, access)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating function access: %w", err)
	}
	return result, nil
}

func (r *functionAccessRepository) Upsert(ctx context.Context, projectID uuid.UUID, access *models.FunctionAccess) error {
	sql := `
		INSERT INTO engine_function_access (project_id, ` + functionAccessColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id, schema_name, function_name) DO UPDATE
		SET is_protected = EXCLUDED.is_protected,
		    allowed_roles = EXCLUDED.allowed_roles,
		    definition_hash = EXCLUDED.definition_hash,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at`

	err := r.db.QueryRow(ctx, sql,
		projectID, access.Schema, access.Name, access.IsProtected, rolesOrEmpty(access.AllowedRoles),
		access.DefinitionHash, access.CreatedAt, access.UpdatedAt,
	).Scan(&access.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save function access: %w", err)
	}
	return nil
}

func (r *functionAccessRepository) Delete(ctx context.Context, projectID uuid.UUID, schema, name string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM engine_function_access
		WHERE project_id = $1 AND schema_name = $2 AND function_name = $3`,
		projectID, schema, name)
	if err != nil {
		return fmt.Errorf("failed to delete function access: %w", err)
	}
	return nil
}

func scanFunctionAccess(row pgx.Row) (*models.FunctionAccess, error) {
	var a models.FunctionAccess
	err := row.Scan(&a.Schema, &a.Name, &a.IsProtected, &a.AllowedRoles,
		&a.DefinitionHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
