package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/auth"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/config"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/database"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/executor"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/handlers"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/middleware"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("project_id", cfg.Project.ID.String()),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.User+"@"+cfg.Database.Host+"/"+cfg.Database.Database),
		zap.Bool("separate_project_database", !cfg.Project.Database.UsesEngineDatabase()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	engineDB, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		return err
	}
	defer engineDB.Close()

	if err := database.RunMigrationsOnPool(engineDB.Pool, cfg.MigrationsPath, logger); err != nil {
		return err
	}

	runtimeCfg := services.RuntimeConfig{
		ProjectID:   cfg.Project.ID,
		EngineDB:    engineDB,
		ProjectPool: engineDB.Pool,
		Executor: executor.Config{
			StatementTimeout: cfg.Runtime.StatementTimeout,
			AcquireTimeout:   cfg.Runtime.AcquireTimeout,
		},
		SeedFile: cfg.Runtime.SeedFile,
	}
	if !cfg.Project.Database.UsesEngineDatabase() {
		projectDB, err := database.NewConnection(ctx, &database.Config{
			URL:            cfg.Project.Database.ConnectionString(),
			MaxConnections: cfg.Project.Database.MaxConnections,
		}, logger)
		if err != nil {
			return err
		}
		runtimeCfg.ProjectPool = projectDB.Pool
		runtimeCfg.OwnsProjectPool = true
	}

	rt := services.NewRuntime(runtimeCfg, logger)
	defer rt.Close()
	if err := rt.Load(ctx); err != nil {
		return err
	}

	jwksClient, err := auth.NewJWKSClient(ctx, &auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
		Audience:           cfg.Auth.Audience,
	})
	if err != nil {
		return err
	}
	defer jwksClient.Close()

	if cfg.Auth.OwnerSubject == "" {
		logger.Warn("auth.owner_subject is empty; the authoring API will reject every caller")
	}
	resolver := auth.NewResolver(auth.NewAuthService(jwksClient, logger), rt.RoleSource(), cfg.Project.ID, cfg.Auth.OwnerSubject, logger)
	authMiddleware := auth.NewMiddleware(resolver, logger)

	mux := http.NewServeMux()
	maxBody := cfg.Runtime.MaxBodyBytes

	// Register handlers
	handlers.NewHealthHandler(cfg, rt, logger).RegisterRoutes(mux)
	handlers.NewEndpointsHandler(rt.Endpoints, maxBody, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewFunctionsHandler(rt.Functions, rt.Dispatcher, maxBody, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewTablesHandler(rt.Tables, maxBody, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewRolesHandler(rt.Roles, maxBody, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewDynamicHandler(rt.Dispatcher, maxBody, logger).RegisterRoutes(mux, authMiddleware)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting api-builder",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))

		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
