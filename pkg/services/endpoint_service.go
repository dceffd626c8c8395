package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/routing"
	sqlutil "github.com/TharinduNimesh/api-builder-sub001/pkg/sql"
)

var paramNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ReservedPathRoots are served by the built-in handlers, which take
// precedence over dynamic endpoints. A root covers itself and every path
// below it.
var ReservedPathRoots = []string{"/api", "/health", "/ping"}

// isReservedPath reports whether a normalized pattern falls under a reserved
// root. Patterns starting with a placeholder are allowed; they still serve
// every path the built-in routes do not claim.
func isReservedPath(pattern string) bool {
	for _, root := range ReservedPathRoots {
		if pattern == root || strings.HasPrefix(pattern, root+"/") {
			return true
		}
	}
	return false
}

// EndpointService manages endpoint definitions. Every successful write is
// persisted and live for matching before the call returns.
type EndpointService interface {
	List(ctx context.Context) []*models.EndpointDefinition
	Get(ctx context.Context, id uuid.UUID) (*models.EndpointDefinition, error)
	Create(ctx context.Context, def *models.EndpointDefinition) (*models.EndpointDefinition, error)
	Update(ctx context.Context, id uuid.UUID, def *models.EndpointDefinition) (*models.EndpointDefinition, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// LoadSeed registers the definitions in a YAML seed file, skipping any
	// whose method and path are already defined. Returns how many were added.
	LoadSeed(ctx context.Context, path string) (int, error)
	// Export renders every definition in the seed file format.
	Export(ctx context.Context) ([]byte, error)
}

type endpointService struct {
	registry  *routing.Registry
	projectID uuid.UUID
	logger    *zap.Logger
}

// NewEndpointService creates a new EndpointService over the registry.
func NewEndpointService(registry *routing.Registry, projectID uuid.UUID, logger *zap.Logger) EndpointService {
	return &endpointService{
		registry:  registry,
		projectID: projectID,
		logger:    logger.Named("endpoint-service"),
	}
}

var _ EndpointService = (*endpointService)(nil)

func (s *endpointService) List(ctx context.Context) []*models.EndpointDefinition {
	return s.registry.List()
}

func (s *endpointService) Get(ctx context.Context, id uuid.UUID) (*models.EndpointDefinition, error) {
	return s.registry.Get(id)
}

func (s *endpointService) Create(ctx context.Context, def *models.EndpointDefinition) (*models.EndpointDefinition, error) {
	if err := ValidateEndpoint(def); err != nil {
		return nil, err
	}
	def.ID = uuid.Nil
	def.ProjectID = s.projectID

	created, err := s.registry.Register(ctx, def)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Endpoint created",
		zap.String("endpoint_id", created.ID.String()),
		zap.String("method", created.Method),
		zap.String("path", created.Path),
		zap.Bool("is_active", created.IsActive))
	return created, nil
}

func (s *endpointService) Update(ctx context.Context, id uuid.UUID, def *models.EndpointDefinition) (*models.EndpointDefinition, error) {
	if err := ValidateEndpoint(def); err != nil {
		return nil, err
	}

	updated, err := s.registry.Update(ctx, id, def)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Endpoint updated",
		zap.String("endpoint_id", updated.ID.String()),
		zap.String("method", updated.Method),
		zap.String("path", updated.Path),
		zap.Bool("is_active", updated.IsActive))
	return updated, nil
}

func (s *endpointService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.registry.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Endpoint deleted", zap.String("endpoint_id", id.String()))
	return nil
}

// ValidateEndpoint checks an authoring request before it reaches the
// registry. It normalizes Method and SQL in place.
func ValidateEndpoint(def *models.EndpointDefinition) error {
	if def == nil {
		return invalidDefinition("endpoint definition is required")
	}

	def.Method = strings.ToUpper(strings.TrimSpace(def.Method))
	if !models.IsValidMethod(def.Method) {
		return invalidDefinition("method must be one of %s", strings.Join(models.ValidMethods, ", "))
	}

	pattern, err := routing.ParsePattern(def.Path)
	if err != nil {
		return invalidDefinition("%s", err.Error())
	}
	if isReservedPath(pattern.String()) {
		return invalidDefinition("path %s is reserved for the built-in API (%s)", pattern, strings.Join(ReservedPathRoots, ", "))
	}

	sqlText, err := sqlutil.Normalize(def.SQL)
	if err != nil {
		return invalidDefinition("%s", err.Error())
	}
	def.SQL = sqlText

	names := make([]string, 0, len(def.Params))
	seen := make(map[string]bool, len(def.Params))
	for _, p := range def.Params {
		if !paramNameRegex.MatchString(p.Name) {
			return invalidDefinition("parameter name %q is not a valid identifier", p.Name)
		}
		if seen[p.Name] {
			return invalidDefinition("parameter %q is declared more than once", p.Name)
		}
		seen[p.Name] = true
		names = append(names, p.Name)

		switch p.Location {
		case models.LocationPath:
			if !pattern.HasParam(p.Name) {
				return invalidDefinition("path parameter %q does not appear in path %s", p.Name, pattern)
			}
		case models.LocationQuery, models.LocationBody:
		default:
			return invalidDefinition("parameter %q has invalid location %q (want path, query or body)", p.Name, p.Location)
		}

		switch p.EffectiveType() {
		case models.TypeString, models.TypeNumber, models.TypeBoolean:
		default:
			return invalidDefinition("parameter %q has invalid type %q (want string, number or boolean)", p.Name, p.Type)
		}
	}

	for _, placeholder := range pattern.Params() {
		if !declaredIn(def.Params, placeholder, models.LocationPath) {
			return invalidDefinition("path placeholder :%s is not declared as a path parameter", placeholder)
		}
	}

	if err := sqlutil.ValidateTemplate(def.SQL, names); err != nil {
		return invalidDefinition("%s", err.Error())
	}

	return nil
}

func declaredIn(params []models.ParameterSpec, name, location string) bool {
	for _, p := range params {
		if p.Name == name && p.Location == location {
			return true
		}
	}
	return false
}

func invalidDefinition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidDefinition, fmt.Sprintf(format, args...))
}

// seedFile is the YAML layout used by LoadSeed and Export.
type seedFile struct {
	Endpoints []seedEndpoint `yaml:"endpoints"`
}

type seedEndpoint struct {
	Method       string                 `yaml:"method"`
	Path         string                 `yaml:"path"`
	Description  string                 `yaml:"description,omitempty"`
	SQL          string                 `yaml:"sql"`
	IsActive     *bool                  `yaml:"is_active,omitempty"`
	IsProtected  bool                   `yaml:"is_protected,omitempty"`
	AllowedRoles []string               `yaml:"allowed_roles,omitempty"`
	Params       []models.ParameterSpec `yaml:"params,omitempty"`
}

func (e seedEndpoint) definition() *models.EndpointDefinition {
	def := &models.EndpointDefinition{
		Method:       e.Method,
		Path:         e.Path,
		SQL:          e.SQL,
		IsActive:     e.IsActive == nil || *e.IsActive,
		IsProtected:  e.IsProtected,
		AllowedRoles: e.AllowedRoles,
		Params:       e.Params,
	}
	if e.Description != "" {
		desc := e.Description
		def.Description = &desc
	}
	return def
}

func seedFromDefinition(def *models.EndpointDefinition) seedEndpoint {
	active := def.IsActive
	e := seedEndpoint{
		Method:       def.Method,
		Path:         def.Path,
		SQL:          def.SQL,
		IsActive:     &active,
		IsProtected:  def.IsProtected,
		AllowedRoles: def.AllowedRoles,
		Params:       def.Params,
	}
	if def.Description != nil {
		e.Description = *def.Description
	}
	return e
}

func (s *endpointService) LoadSeed(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	existing := make(map[string]bool)
	for _, def := range s.registry.List() {
		existing[def.Method+" "+def.Path] = true
	}

	added := 0
	var errs []error
	for i, entry := range seed.Endpoints {
		def := entry.definition()
		if err := ValidateEndpoint(def); err != nil {
			errs = append(errs, fmt.Errorf("seed endpoint %d (%s %s): %w", i, entry.Method, entry.Path, err))
			continue
		}

		pattern, _ := routing.ParsePattern(def.Path)
		key := def.Method + " " + pattern.String()
		if existing[key] {
			s.logger.Debug("Seed endpoint already defined", zap.String("route", key))
			continue
		}

		def.ProjectID = s.projectID
		if _, err := s.registry.Register(ctx, def); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				s.logger.Warn("Seed endpoint collides with an existing route",
					zap.String("route", key),
					zap.Error(err))
				continue
			}
			errs = append(errs, fmt.Errorf("seed endpoint %d (%s): %w", i, key, err))
			continue
		}
		existing[key] = true
		added++
	}

	return added, errors.Join(errs...)
}

func (s *endpointService) Export(ctx context.Context) ([]byte, error) {
	defs := s.registry.List()
	seed := seedFile{Endpoints: make([]seedEndpoint, 0, len(defs))}
	for _, def := range defs {
		seed.Endpoints = append(seed.Endpoints, seedFromDefinition(def))
	}

	out, err := yaml.Marshal(&seed)
	if err != nil {
		return nil, fmt.Errorf("failed to render endpoints: %w", err)
	}
	return out, nil
}
