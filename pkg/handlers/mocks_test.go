package handlers

import (
	"context"
	"sync"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/access"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/executor"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/services"
	sqlutil "github.com/TharinduNimesh/api-builder-sub001/pkg/sql"
)

// mockExecutor records statements and returns a configurable result.
type mockExecutor struct {
	mu     sync.Mutex
	sql    []string
	args   [][]any
	result *executor.Result
	err    error
}

func (m *mockExecutor) Execute(ctx context.Context, sqlText string, args []any) (*executor.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sql = append(m.sql, sqlText)
	m.args = append(m.args, args)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &executor.Result{ReturnsRows: true}, nil
}

func (m *mockExecutor) ExecuteScript(ctx context.Context, sqlText string) (*executor.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sql = append(m.sql, sqlText)
	m.args = append(m.args, nil)
	if m.err != nil {
		return nil, m.err
	}
	return &executor.Result{WarnReplace: sqlutil.HasCreateOrReplace(sqlText)}, nil
}

func (m *mockExecutor) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sql)
}

// mockFunctionService is a canned FunctionService.
type mockFunctionService struct {
	functions    map[string]*models.FunctionDefinition
	createErr    error
	authorizeErr error
	invokeErr    error
	invokeRes    *executor.Result
	invokedArgs  []any
	calls        int
}

func newMockFunctionService(defs ...*models.FunctionDefinition) *mockFunctionService {
	m := &mockFunctionService{functions: make(map[string]*models.FunctionDefinition)}
	for _, def := range defs {
		m.functions[def.Schema+"."+def.Name] = def
	}
	return m
}

func (m *mockFunctionService) List(ctx context.Context) ([]*models.FunctionDefinition, error) {
	out := make([]*models.FunctionDefinition, 0, len(m.functions))
	for _, def := range m.functions {
		out = append(out, def)
	}
	return out, nil
}

func (m *mockFunctionService) Get(ctx context.Context, schema, name string) (*models.FunctionDefinition, error) {
	def, ok := m.functions[schema+"."+name]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return def, nil
}

func (m *mockFunctionService) Create(ctx context.Context, req services.CreateFunctionRequest) (*services.CreateFunctionResult, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	def := &models.FunctionDefinition{Schema: "public", Name: "add_numbers", FullName: "public.add_numbers", IsProtected: true, AllowedRoles: []string{}}
	m.functions["public.add_numbers"] = def
	warn := sqlutil.HasCreateOrReplace(req.SQL)
	return &services.CreateFunctionResult{Function: def, Result: &executor.Result{WarnReplace: warn}, WarnReplace: warn}, nil
}

func (m *mockFunctionService) Drop(ctx context.Context, schema, name string) error {
	if _, ok := m.functions[schema+"."+name]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.functions, schema+"."+name)
	return nil
}

func (m *mockFunctionService) UpdateAccess(ctx context.Context, schema, name string, update services.FunctionAccessUpdate) (*models.FunctionDefinition, error) {
	def, ok := m.functions[schema+"."+name]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	def.IsProtected = update.IsProtected
	def.AllowedRoles = update.AllowedRoles
	return def, nil
}

func (m *mockFunctionService) Authorize(ctx context.Context, schema, name string, authCtx access.AuthContext) (*models.FunctionDefinition, error) {
	def, err := m.Get(ctx, schema, name)
	if err != nil {
		return nil, err
	}
	if m.authorizeErr != nil {
		return nil, m.authorizeErr
	}
	return def, nil
}

func (m *mockFunctionService) Call(ctx context.Context, def *models.FunctionDefinition, args []any) (*executor.Result, error) {
	m.calls++
	m.invokedArgs = args
	if m.invokeErr != nil {
		return nil, m.invokeErr
	}
	return m.invokeRes, nil
}

func (m *mockFunctionService) Invoke(ctx context.Context, schema, name string, args []any, authCtx access.AuthContext) (*executor.Result, error) {
	def, err := m.Authorize(ctx, schema, name, authCtx)
	if err != nil {
		return nil, err
	}
	return m.Call(ctx, def, args)
}

// mockTableService records the last script.
type mockTableService struct {
	lastSQL string
	err     error
}

func (m *mockTableService) Execute(ctx context.Context, sqlText string) (*executor.Result, error) {
	m.lastSQL = sqlText
	if m.err != nil {
		return nil, m.err
	}
	return &executor.Result{WarnReplace: sqlutil.HasCreateOrReplace(sqlText)}, nil
}

// mockRoleService keeps role names in memory.
type mockRoleService struct {
	roles map[string]*models.Role
}

func newMockRoleService() *mockRoleService {
	return &mockRoleService{roles: make(map[string]*models.Role)}
}

func (m *mockRoleService) List(ctx context.Context) ([]*models.Role, error) {
	out := make([]*models.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRoleService) Create(ctx context.Context, name, description string) (*models.Role, error) {
	if _, ok := m.roles[name]; ok {
		return nil, apperrors.ErrConflict
	}
	role := &models.Role{Name: name, Description: description}
	m.roles[name] = role
	return role, nil
}

func (m *mockRoleService) Delete(ctx context.Context, name string) error {
	if _, ok := m.roles[name]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.roles, name)
	return nil
}

func (m *mockRoleService) ListMembers(ctx context.Context, roleName string) ([]*models.RoleMember, error) {
	return []*models.RoleMember{}, nil
}

func (m *mockRoleService) AddMember(ctx context.Context, roleName, userID string) error {
	if _, ok := m.roles[roleName]; !ok {
		return apperrors.ErrNotFound
	}
	return nil
}

func (m *mockRoleService) RemoveMember(ctx context.Context, roleName, userID string) error {
	return apperrors.ErrNotFound
}

// mockStatusReporter returns a fixed runtime status.
type mockStatusReporter struct {
	status services.RuntimeStatus
	calls  int
	ctx    context.Context
}

func (m *mockStatusReporter) Status(ctx context.Context) services.RuntimeStatus {
	m.calls++
	m.ctx = ctx
	return m.status
}
