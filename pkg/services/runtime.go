package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/audit"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/auth"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/executor"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/repositories"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/routing"
)

// RuntimeConfig describes the project a Runtime serves.
type RuntimeConfig struct {
	ProjectID uuid.UUID
	// EngineDB holds endpoint definitions, function access settings and roles.
	EngineDB repositories.Querier
	// ProjectPool is the database that endpoint and function SQL runs against.
	ProjectPool *pgxpool.Pool
	// OwnsProjectPool makes Close close ProjectPool.
	OwnsProjectPool bool
	Executor        executor.Config
	// SeedFile, when set, is loaded after the stored definitions.
	SeedFile string
}

// Runtime owns the registry, services and dispatcher of one project.
// Use NewRuntime, then Load before serving, and Close on shutdown.
type Runtime struct {
	Endpoints  EndpointService
	Functions  FunctionService
	Tables     TableService
	Roles      RoleService
	Dispatcher *Dispatcher

	registry     *routing.Registry
	exec         executor.Executor
	pool         *pgxpool.Pool
	endpointRepo repositories.EndpointRepository
	roleRepo     repositories.RoleRepository
	projectID    uuid.UUID
	seedFile     string
	close        func()
	logger       *zap.Logger
}

// runtimeDeps are the collaborators a Runtime is assembled from.
type runtimeDeps struct {
	exec         executor.Executor
	endpointRepo repositories.EndpointRepository
	accessRepo   repositories.FunctionAccessRepository
	catalog      repositories.FunctionCatalog
	roleRepo     repositories.RoleRepository
}

// NewRuntime wires the repositories, execution engine and services for a project.
func NewRuntime(cfg RuntimeConfig, logger *zap.Logger) *Runtime {
	deps := runtimeDeps{
		exec:         executor.NewEngine(cfg.ProjectPool, cfg.Executor, logger),
		endpointRepo: repositories.NewEndpointRepository(cfg.EngineDB),
		accessRepo:   repositories.NewFunctionAccessRepository(cfg.EngineDB),
		catalog:      repositories.NewFunctionCatalog(cfg.ProjectPool),
		roleRepo:     repositories.NewRoleRepository(cfg.EngineDB),
	}
	rt := newRuntime(cfg.ProjectID, cfg.SeedFile, deps, logger)
	rt.pool = cfg.ProjectPool
	if cfg.OwnsProjectPool {
		rt.close = cfg.ProjectPool.Close
	}
	return rt
}

func newRuntime(projectID uuid.UUID, seedFile string, deps runtimeDeps, logger *zap.Logger) *Runtime {
	registry := routing.NewRegistry(deps.endpointRepo)
	functions := NewFunctionService(deps.exec, deps.catalog, deps.accessRepo, projectID, logger)

	return &Runtime{
		Endpoints:    NewEndpointService(registry, projectID, logger),
		Functions:    functions,
		Tables:       NewTableService(deps.exec, logger),
		Roles:        NewRoleService(deps.roleRepo, projectID, logger),
		Dispatcher:   NewDispatcher(registry, deps.exec, functions, audit.NewSecurityAuditor(logger, projectID), logger),
		registry:     registry,
		exec:         deps.exec,
		endpointRepo: deps.endpointRepo,
		roleRepo:     deps.roleRepo,
		projectID:    projectID,
		seedFile:     seedFile,
		close:        func() {},
		logger:       logger.Named("runtime"),
	}
}

// RoleSource returns the stored role memberships for credential resolution.
func (rt *Runtime) RoleSource() auth.RoleSource {
	return rt.roleRepo
}

// Load fills the registry from the store and then applies the seed file.
// Stored definitions whose path no longer parses are skipped. Colliding ones
// are logged and left out of matching but stay listed so the owner can fix
// them.
func (rt *Runtime) Load(ctx context.Context) error {
	defs, err := rt.endpointRepo.ListByProject(ctx, rt.projectID)
	if err != nil {
		return fmt.Errorf("failed to load endpoints: %w", err)
	}

	if err := rt.registry.Load(defs); err != nil {
		rt.logger.Warn("Some stored endpoints are not routable", zap.Error(err))
	}

	if rt.seedFile != "" {
		added, err := rt.Endpoints.LoadSeed(ctx, rt.seedFile)
		if err != nil {
			rt.logger.Warn("Seed file applied with errors",
				zap.String("seed_file", rt.seedFile),
				zap.Int("added", added),
				zap.Error(err))
		} else {
			rt.logger.Info("Seed file applied",
				zap.String("seed_file", rt.seedFile),
				zap.Int("added", added))
		}
	}

	rt.logger.Info("Project runtime loaded",
		zap.String("project_id", rt.projectID.String()),
		zap.Int("endpoints", len(rt.registry.List())))
	return nil
}

// RuntimeStatus summarizes a project runtime for health reporting.
type RuntimeStatus struct {
	Endpoints         int         `json:"endpoints"`
	ActiveEndpoints   int         `json:"active_endpoints"`
	DatabaseReachable bool        `json:"database_reachable"`
	Pool              *PoolStatus `json:"pool,omitempty"`
}

// PoolStatus is a snapshot of the project connection pool.
type PoolStatus struct {
	MaxConns      int32 `json:"max_conns"`
	TotalConns    int32 `json:"total_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
}

// Status counts the registered endpoints and checks that the project database
// answers a trivial query.
func (rt *Runtime) Status(ctx context.Context) RuntimeStatus {
	defs := rt.registry.List()
	status := RuntimeStatus{Endpoints: len(defs)}
	for _, def := range defs {
		if def.IsActive {
			status.ActiveEndpoints++
		}
	}

	if _, err := rt.exec.Execute(ctx, "SELECT 1", nil); err != nil {
		rt.logger.Warn("Project database health check failed", zap.Error(err))
	} else {
		status.DatabaseReachable = true
	}

	if rt.pool != nil {
		stat := rt.pool.Stat()
		status.Pool = &PoolStatus{
			MaxConns:      stat.MaxConns(),
			TotalConns:    stat.TotalConns(),
			AcquiredConns: stat.AcquiredConns(),
			IdleConns:     stat.IdleConns(),
		}
	}
	return status
}

// Close releases the project database when the runtime owns it.
func (rt *Runtime) Close() {
	rt.close()
}
