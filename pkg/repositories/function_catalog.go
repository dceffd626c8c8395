package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
)

// FunctionCatalog reads function metadata from the project database's
// pg_proc catalog, which is the source of truth for installed functions.
type FunctionCatalog interface {
	Get(ctx context.Context, schema, name string) (*models.FunctionCatalogEntry, error)
	List(ctx context.Context) ([]*models.FunctionCatalogEntry, error)
}

type functionCatalog struct {
	db Querier
}

// NewFunctionCatalog creates a catalog reader over the project database.
func NewFunctionCatalog(db Querier) FunctionCatalog {
	return &functionCatalog{db: db}
}

var _ FunctionCatalog = (*functionCatalog)(nil)

// For overloaded names the most recently created function (highest oid) wins.
// Functions owned by extensions and system schemas are excluded.
const functionCatalogQuery = `
	SELECT DISTINCT ON (n.nspname, p.proname)
	       n.nspname,
	       p.proname,
	       pg_get_function_arguments(p.oid),
	       pg_get_function_identity_arguments(p.oid),
	       pg_get_function_result(p.oid),
	       pg_get_functiondef(p.oid)
	FROM pg_proc p
	JOIN pg_namespace n ON n.oid = p.pronamespace
	WHERE p.prokind = 'f'
	  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
	  AND n.nspname NOT LIKE 'pg\_toast%'
	  AND n.nspname NOT LIKE 'pg\_temp%'
	  AND NOT EXISTS (
	      SELECT 1 FROM pg_depend d
	      WHERE d.classid = 'pg_proc'::regclass AND d.objid = p.oid AND d.deptype = 'e'
	  )`

func (c *functionCatalog) Get(ctx context.Context, schema, name string) (*models.FunctionCatalogEntry, error) {
	sql := functionCatalogQuery + `
	  AND n.nspname = $1 AND p.proname = $2
	ORDER BY n.nspname, p.proname, p.oid DESC`

	entry, err := scanCatalogEntry(c.db.QueryRow(ctx, sql, schema, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("function %s.%s: %w", schema, name, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read function catalog: %w", err)
	}
	return entry, nil
}

func (c *functionCatalog) List(ctx context.Context) ([]*models.FunctionCatalogEntry, error) {
	sql := functionCatalogQuery + `
	ORDER BY n.nspname, p.proname, p.oid DESC`

	rows, err := c.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list function catalog: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.FunctionCatalogEntry, 0)
	for rows.Next() {
		entry, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan function catalog: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating function catalog: %w", err)
	}
	return entries, nil
}

func scanCatalogEntry(row pgx.Row) (*models.FunctionCatalogEntry, error) {
	var e models.FunctionCatalogEntry
	if err := row.Scan(&e.Schema, &e.Name, &e.Arguments, &e.IdentArgs, &e.ReturnType, &e.Definition); err != nil {
		return nil, err
	}
	return &e, nil
}
