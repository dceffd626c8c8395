package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/access"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/executor"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/repositories"
	sqlutil "github.com/TharinduNimesh/api-builder-sub001/pkg/sql"
)

// CreateFunctionRequest installs a function from author-supplied SQL.
// Nil access fields keep the current settings, or the defaults
// (protected, no roles) for a new function.
type CreateFunctionRequest struct {
	SQL          string
	IsProtected  *bool
	AllowedRoles []string
}

// CreateFunctionResult is the outcome of a create.
type CreateFunctionResult struct {
	Function *models.FunctionDefinition `json:"function"`
	Result   *executor.Result           `json:"result"`
	// WarnReplace is set when the SQL used CREATE OR REPLACE, meaning an
	// existing function may have been overwritten.
	WarnReplace bool `json:"warnReplace"`
}

// FunctionAccessUpdate changes who may invoke a function.
type FunctionAccessUpdate struct {
	IsProtected  bool
	AllowedRoles []string
}

// FunctionService manages database functions. The database catalog is the
// source of truth for signatures and definitions; the service adds access
// settings and timestamps.
type FunctionService interface {
	List(ctx context.Context) ([]*models.FunctionDefinition, error)
	Get(ctx context.Context, schema, name string) (*models.FunctionDefinition, error)
	Create(ctx context.Context, req CreateFunctionRequest) (*CreateFunctionResult, error)
	Drop(ctx context.Context, schema, name string) error
	UpdateAccess(ctx context.Context, schema, name string, update FunctionAccessUpdate) (*models.FunctionDefinition, error)
	// Authorize resolves the function and checks the caller against its access
	// settings. A missing function is ErrNotFound whoever the caller is.
	Authorize(ctx context.Context, schema, name string, authCtx access.AuthContext) (*models.FunctionDefinition, error)
	// Call runs a function that already passed Authorize, with args as
	// positional bind parameters.
	Call(ctx context.Context, def *models.FunctionDefinition, args []any) (*executor.Result, error)
	// Invoke is Authorize followed by Call.
	Invoke(ctx context.Context, schema, name string, args []any, authCtx access.AuthContext) (*executor.Result, error)
}

type functionService struct {
	exec       executor.Executor
	catalog    repositories.FunctionCatalog
	accessRepo repositories.FunctionAccessRepository
	projectID  uuid.UUID
	now        func() time.Time
	logger     *zap.Logger
}

// NewFunctionService creates a new FunctionService.
func NewFunctionService(
	exec executor.Executor,
	catalog repositories.FunctionCatalog,
	accessRepo repositories.FunctionAccessRepository,
	projectID uuid.UUID,
	logger *zap.Logger,
) FunctionService {
	return &functionService{
		exec:       exec,
		catalog:    catalog,
		accessRepo: accessRepo,
		projectID:  projectID,
		now:        time.Now,
		logger:     logger.Named("function-service"),
	}
}

var _ FunctionService = (*functionService)(nil)

func (s *functionService) List(ctx context.Context) ([]*models.FunctionDefinition, error) {
	entries, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	settings, err := s.accessRepo.List(ctx, s.projectID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*models.FunctionAccess, len(settings))
	for _, a := range settings {
		byKey[a.Schema+"."+a.Name] = a
	}

	defs := make([]*models.FunctionDefinition, 0, len(entries))
	for _, entry := range entries {
		defs = append(defs, buildFunctionDefinition(entry, byKey[entry.Schema+"."+entry.Name]))
	}
	return defs, nil
}

func (s *functionService) Get(ctx context.Context, schema, name string) (*models.FunctionDefinition, error) {
	entry, err := s.catalog.Get(ctx, schema, name)
	if err != nil {
		return nil, err
	}

	settings, err := s.accessRepo.Get(ctx, s.projectID, schema, name)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	return buildFunctionDefinition(entry, settings), nil
}

func (s *functionService) Create(ctx context.Context, req CreateFunctionRequest) (*CreateFunctionResult, error) {
	if strings.TrimSpace(req.SQL) == "" {
		return nil, invalidDefinition("sql is required")
	}
	schema, name, err := sqlutil.ParseFunctionName(req.SQL)
	if err != nil {
		return nil, invalidDefinition("%s", err.Error())
	}

	result, err := s.exec.ExecuteScript(ctx, req.SQL)
	if err != nil {
		return nil, err
	}

	entry, err := s.catalog.Get(ctx, schema, name)
	if err != nil {
		s.logger.Error("Function missing from catalog after create",
			zap.String("schema", schema),
			zap.String("name", name),
			zap.Error(err))
		return nil, fmt.Errorf("function %s.%s was not found after create: %w", schema, name, err)
	}

	settings, err := s.accessRepo.Get(ctx, s.projectID, schema, name)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	hash := definitionHash(entry.Definition)
	if settings == nil {
		settings = &models.FunctionAccess{
			Schema:       schema,
			Name:         name,
			IsProtected:  true,
			AllowedRoles: []string{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	} else if settings.DefinitionHash != hash {
		settings.UpdatedAt = now
	}
	settings.DefinitionHash = hash
	if req.IsProtected != nil {
		settings.IsProtected = *req.IsProtected
	}
	if req.AllowedRoles != nil {
		settings.AllowedRoles = req.AllowedRoles
	}

	if err := s.accessRepo.Upsert(ctx, s.projectID, settings); err != nil {
		return nil, err
	}

	s.logger.Info("Function installed",
		zap.String("schema", schema),
		zap.String("name", name),
		zap.Bool("warn_replace", result.WarnReplace))

	return &CreateFunctionResult{
		Function:    buildFunctionDefinition(entry, settings),
		Result:      result,
		WarnReplace: result.WarnReplace,
	}, nil
}

func (s *functionService) Drop(ctx context.Context, schema, name string) error {
	entry, err := s.catalog.Get(ctx, schema, name)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf("DROP FUNCTION %s(%s)", pgx.Identifier{entry.Schema, entry.Name}.Sanitize(), entry.IdentArgs)
	if _, err := s.exec.ExecuteScript(ctx, stmt); err != nil {
		return err
	}

	_, err = s.catalog.Get(ctx, schema, name)
	switch {
	case err == nil:
		s.logger.Info("Dropped one overload; others remain",
			zap.String("schema", schema),
			zap.String("name", name))
		return nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return err
	}

	if err := s.accessRepo.Delete(ctx, s.projectID, schema, name); err != nil {
		return err
	}

	s.logger.Info("Function dropped",
		zap.String("schema", schema),
		zap.String("name", name))
	return nil
}

func (s *functionService) UpdateAccess(ctx context.Context, schema, name string, update FunctionAccessUpdate) (*models.FunctionDefinition, error) {
	entry, err := s.catalog.Get(ctx, schema, name)
	if err != nil {
		return nil, err
	}

	settings, err := s.accessRepo.Get(ctx, s.projectID, schema, name)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	if settings == nil {
		settings = &models.FunctionAccess{
			Schema:         schema,
			Name:           name,
			DefinitionHash: definitionHash(entry.Definition),
			CreatedAt:      now,
		}
	}
	settings.IsProtected = update.IsProtected
	settings.AllowedRoles = update.AllowedRoles
	if settings.AllowedRoles == nil {
		settings.AllowedRoles = []string{}
	}
	settings.UpdatedAt = now

	if err := s.accessRepo.Upsert(ctx, s.projectID, settings); err != nil {
		return nil, err
	}
	return buildFunctionDefinition(entry, settings), nil
}

func (s *functionService) Authorize(ctx context.Context, schema, name string, authCtx access.AuthContext) (*models.FunctionDefinition, error) {
	def, err := s.Get(ctx, schema, name)
	if err != nil {
		return nil, err
	}

	if decision := access.Authorize(def.AccessPolicy(), authCtx); !decision.Allowed {
		return nil, decision.Err()
	}
	return def, nil
}

func (s *functionService) Call(ctx context.Context, def *models.FunctionDefinition, args []any) (*executor.Result, error) {
	return s.exec.Execute(ctx, invocationSQL(def.Schema, def.Name, len(args)), args)
}

func (s *functionService) Invoke(ctx context.Context, schema, name string, args []any, authCtx access.AuthContext) (*executor.Result, error) {
	def, err := s.Authorize(ctx, schema, name, authCtx)
	if err != nil {
		return nil, err
	}
	return s.Call(ctx, def, args)
}

// invocationSQL builds SELECT * FROM "schema"."name"($1, ..., $n).
func invocationSQL(schema, name string, argc int) string {
	placeholders := make([]string, argc)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)",
		pgx.Identifier{schema, name}.Sanitize(), strings.Join(placeholders, ", "))
}

func buildFunctionDefinition(entry *models.FunctionCatalogEntry, settings *models.FunctionAccess) *models.FunctionDefinition {
	def := &models.FunctionDefinition{
		Schema:       entry.Schema,
		Name:         entry.Name,
		FullName:     entry.Schema + "." + entry.Name,
		Parameters:   entry.Arguments,
		ReturnType:   entry.ReturnType,
		Definition:   entry.Definition,
		IsProtected:  true,
		AllowedRoles: []string{},
	}
	if settings != nil {
		def.IsProtected = settings.IsProtected
		if settings.AllowedRoles != nil {
			def.AllowedRoles = settings.AllowedRoles
		}
		def.CreatedAt = settings.CreatedAt
		def.UpdatedAt = settings.UpdatedAt
	}
	return def
}

func definitionHash(definition string) string {
	sum := sha256.Sum256([]byte(definition))
	return hex.EncodeToString(sum[:])
}
