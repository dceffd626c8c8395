package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the API builder runtime.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Auth AuthConfig `yaml:"auth"`

	// Database holds endpoint definitions, function access settings and roles.
	Database DatabaseConfig `yaml:"database"`

	Project ProjectConfig `yaml:"project"`

	Runtime RuntimeConfig `yaml:"runtime"`

	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// Audience the tokens must carry. Empty disables the audience check.
	Audience string `yaml:"audience" env:"AUTH_AUDIENCE" env-default:"api-builder"`

	// OwnerSubject is the token subject of the project owner.
	OwnerSubject string `yaml:"owner_subject" env:"PROJECT_OWNER_SUBJECT" env-default:""`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"api_builder"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"api_builder"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ProjectConfig identifies the project this process serves and where its
// data lives.
type ProjectConfig struct {
	IDStr string    `yaml:"id" env:"PROJECT_ID" env-default:"00000000-0000-0000-0000-000000000001"`
	ID    uuid.UUID `yaml:"-"`

	// Database is the database authored SQL runs against. An empty host means
	// the engine database is reused.
	Database ProjectDatabaseConfig `yaml:"database"`
}

// ProjectDatabaseConfig is the target database for authored SQL.
type ProjectDatabaseConfig struct {
	Host           string `yaml:"host" env:"PROJECT_PGHOST" env-default:""`
	Port           int    `yaml:"port" env:"PROJECT_PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PROJECT_PGUSER" env-default:""`
	Password       string `yaml:"-" env:"PROJECT_PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PROJECT_PGDATABASE" env-default:""`
	MaxConnections int32  `yaml:"max_connections" env:"PROJECT_PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PROJECT_PGSSLMODE" env-default:"disable"`
}

// RuntimeConfig bounds request handling.
type RuntimeConfig struct {
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"RUNTIME_STATEMENT_TIMEOUT" env-default:"30s"`
	AcquireTimeout   time.Duration `yaml:"acquire_timeout" env:"RUNTIME_ACQUIRE_TIMEOUT" env-default:"5s"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes" env:"RUNTIME_MAX_BODY_BYTES" env-default:"1048576"`
	// SeedFile optionally names a YAML file of endpoint definitions loaded at startup.
	SeedFile string `yaml:"seed_file" env:"RUNTIME_SEED_FILE" env-default:""`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (PGPASSWORD,
// PROJECT_PGPASSWORD) must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.validateRuntime(); err != nil {
		return nil, fmt.Errorf("invalid runtime configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	c.Auth.JWKSEndpoints = parseJWKSEndpoints(c.Auth.JWKSEndpointsStr)

	id, err := uuid.Parse(c.Project.IDStr)
	if err != nil {
		return fmt.Errorf("project id %q is not a UUID: %w", c.Project.IDStr, err)
	}
	c.Project.ID = id
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

func (c *Config) validateRuntime() error {
	if c.Runtime.StatementTimeout <= 0 {
		return fmt.Errorf("statement_timeout must be positive, got %s", c.Runtime.StatementTimeout)
	}
	if c.Runtime.AcquireTimeout <= 0 {
		return fmt.Errorf("acquire_timeout must be positive, got %s", c.Runtime.AcquireTimeout)
	}
	if c.Runtime.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.Runtime.MaxBodyBytes)
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		issuer, jwksURL, ok := strings.Cut(pair, "=")
		if ok {
			endpoints[strings.TrimSpace(issuer)] = strings.TrimSpace(jwksURL)
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string for the engine database.
func (c *DatabaseConfig) ConnectionString() string {
	return connectionString(c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// UsesEngineDatabase reports whether authored SQL shares the engine database.
func (c *ProjectDatabaseConfig) UsesEngineDatabase() bool {
	return c.Host == ""
}

// ConnectionString returns a PostgreSQL connection string for the project database.
func (c *ProjectDatabaseConfig) ConnectionString() string {
	return connectionString(c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

func connectionString(host string, port int, user, password, database, sslMode string) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(host), port, user, password, database, sslMode,
	)
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps localhost to host.docker.internal when running
// inside a container so a database on the host machine stays reachable.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}

	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}

	return host
}
