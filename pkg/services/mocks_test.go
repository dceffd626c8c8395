package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/executor"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
	sqlutil "github.com/TharinduNimesh/api-builder-sub001/pkg/sql"
)

// executedCall records one call made to mockExecutor.
type executedCall struct {
	SQL    string
	Args   []any
	Script bool
}

// mockExecutor records every statement and returns a fixed result or error.
type mockExecutor struct {
	mu       sync.Mutex
	calls    []executedCall
	result   *executor.Result
	err      error
	onScript func(sqlText string)
}

func (m *mockExecutor) Execute(ctx context.Context, sqlText string, args []any) (*executor.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, executedCall{SQL: sqlText, Args: args})
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &executor.Result{ReturnsRows: true, Rows: []map[string]any{}}, nil
}

func (m *mockExecutor) ExecuteScript(ctx context.Context, sqlText string) (*executor.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, executedCall{SQL: sqlText, Script: true})
	if m.err != nil {
		return nil, m.err
	}
	if m.onScript != nil {
		m.onScript(sqlText)
	}
	return &executor.Result{WarnReplace: sqlutil.HasCreateOrReplace(sqlText)}, nil
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockExecutor) lastCall() executedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

// mockEndpointRepository keeps definitions in memory.
type mockEndpointRepository struct {
	mu      sync.Mutex
	defs    map[uuid.UUID]*models.EndpointDefinition
	listErr error
}

func newMockEndpointRepository(defs ...*models.EndpointDefinition) *mockEndpointRepository {
	m := &mockEndpointRepository{defs: make(map[uuid.UUID]*models.EndpointDefinition)}
	for _, def := range defs {
		m.defs[def.ID] = def.Clone()
	}
	return m
}

func (m *mockEndpointRepository) Create(ctx context.Context, def *models.EndpointDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.ID] = def.Clone()
	return nil
}

func (m *mockEndpointRepository) Update(ctx context.Context, def *models.EndpointDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[def.ID]; !ok {
		return apperrors.ErrNotFound
	}
	m.defs[def.ID] = def.Clone()
	return nil
}

func (m *mockEndpointRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.defs, id)
	return nil
}

func (m *mockEndpointRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.EndpointDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	defs := make([]*models.EndpointDefinition, 0, len(m.defs))
	for _, def := range m.defs {
		defs = append(defs, def.Clone())
	}
	return defs, nil
}

func (m *mockEndpointRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.defs)
}

// mockFunctionCatalog stands in for pg_proc.
type mockFunctionCatalog struct {
	mu      sync.Mutex
	entries map[string]*models.FunctionCatalogEntry
}

func newMockFunctionCatalog(entries ...*models.FunctionCatalogEntry) *mockFunctionCatalog {
	m := &mockFunctionCatalog{entries: make(map[string]*models.FunctionCatalogEntry)}
	for _, e := range entries {
		m.put(e)
	}
	return m
}

func (m *mockFunctionCatalog) put(e *models.FunctionCatalogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Schema+"."+e.Name] = e
}

func (m *mockFunctionCatalog) remove(schema, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, schema+"."+name)
}

func (m *mockFunctionCatalog) Get(ctx context.Context, schema, name string) (*models.FunctionCatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[schema+"."+name]
	if !ok {
		return nil, fmt.Errorf("function %s.%s: %w", schema, name, apperrors.ErrNotFound)
	}
	c := *e
	return &c, nil
}

func (m *mockFunctionCatalog) List(ctx context.Context) ([]*models.FunctionCatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.FunctionCatalogEntry, 0, len(m.entries))
	for _, e := range m.entries {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// mockFunctionAccessRepository mirrors the upsert semantics of the real table:
// created_at survives a conflict.
type mockFunctionAccessRepository struct {
	mu   sync.Mutex
	rows map[string]models.FunctionAccess
}

func newMockFunctionAccessRepository() *mockFunctionAccessRepository {
	return &mockFunctionAccessRepository{rows: make(map[string]models.FunctionAccess)}
}

func (m *mockFunctionAccessRepository) Get(ctx context.Context, projectID uuid.UUID, schema, name string) (*models.FunctionAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[schema+"."+name]
	if !ok {
		return nil, fmt.Errorf("function access %s.%s: %w", schema, name, apperrors.ErrNotFound)
	}
	return &row, nil
}

func (m *mockFunctionAccessRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.FunctionAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.FunctionAccess, 0, len(m.rows))
	for _, row := range m.rows {
		r := row
		out = append(out, &r)
	}
	return out, nil
}

func (m *mockFunctionAccessRepository) Upsert(ctx context.Context, projectID uuid.UUID, a *models.FunctionAccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := a.Schema + "." + a.Name
	if existing, ok := m.rows[key]; ok {
		a.CreatedAt = existing.CreatedAt
	}
	m.rows[key] = *a
	return nil
}

func (m *mockFunctionAccessRepository) Delete(ctx context.Context, projectID uuid.UUID, schema, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, schema+"."+name)
	return nil
}

// mockRoleRepository is a minimal in-memory role store.
type mockRoleRepository struct {
	mu      sync.Mutex
	roles   map[string]*models.Role
	members map[string][]string
}

func newMockRoleRepository() *mockRoleRepository {
	return &mockRoleRepository{
		roles:   make(map[string]*models.Role),
		members: make(map[string][]string),
	}
}

func (m *mockRoleRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRoleRepository) Create(ctx context.Context, role *models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[role.Name]; ok {
		return fmt.Errorf("role %q: %w", role.Name, apperrors.ErrConflict)
	}
	m.roles[role.Name] = role
	return nil
}

func (m *mockRoleRepository) Delete(ctx context.Context, projectID uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[name]; !ok {
		return fmt.Errorf("role %q: %w", name, apperrors.ErrNotFound)
	}
	delete(m.roles, name)
	delete(m.members, name)
	return nil
}

func (m *mockRoleRepository) AddMember(ctx context.Context, projectID uuid.UUID, roleName, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleName]; !ok {
		return fmt.Errorf("role %q: %w", roleName, apperrors.ErrNotFound)
	}
	m.members[roleName] = append(m.members[roleName], userID)
	return nil
}

func (m *mockRoleRepository) RemoveMember(ctx context.Context, projectID uuid.UUID, roleName, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := m.members[roleName]
	for i, u := range users {
		if u == userID {
			m.members[roleName] = append(users[:i], users[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("member %q of role %q: %w", userID, roleName, apperrors.ErrNotFound)
}

func (m *mockRoleRepository) ListMembers(ctx context.Context, projectID uuid.UUID, roleName string) ([]*models.RoleMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.RoleMember, 0)
	for _, u := range m.members[roleName] {
		out = append(out, &models.RoleMember{ProjectID: projectID, RoleName: roleName, UserID: u})
	}
	return out, nil
}

func (m *mockRoleRepository) RolesForUser(ctx context.Context, projectID uuid.UUID, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for role, users := range m.members {
		for _, u := range users {
			if u == userID {
				out = append(out, role)
			}
		}
	}
	return out, nil
}
