package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/access"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
)

const runtimeSeed = `endpoints:
  - method: GET
    path: /widgets/:id
    sql: SELECT * FROM widgets WHERE id = $1
    params:
      - name: id
        in: path
        type: number
        required: true
  - method: GET
    path: /status/db
    sql: SELECT 1 AS ok
`

func newTestRuntime(t *testing.T, seedFile string, stored ...*models.EndpointDefinition) (*Runtime, *mockExecutor, *mockEndpointRepository) {
	t.Helper()
	exec := &mockExecutor{}
	repo := newMockEndpointRepository(stored...)
	rt := newRuntime(testProjectID, seedFile, runtimeDeps{
		exec:         exec,
		endpointRepo: repo,
		accessRepo:   newMockFunctionAccessRepository(),
		catalog:      newMockFunctionCatalog(),
		roleRepo:     newMockRoleRepository(),
	}, zap.NewNop())
	return rt, exec, repo
}

func storedWidget() *models.EndpointDefinition {
	def := widgetEndpoint()
	def.Method = "GET"
	def.SQL = "SELECT * FROM widgets WHERE id = $1"
	def.ID = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	def.ProjectID = testProjectID
	def.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	def.UpdatedAt = def.CreatedAt
	return def
}

func TestRuntime_LoadStoredAndSeed(t *testing.T) {
	seedPath := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(runtimeSeed), 0o600))

	rt, exec, repo := newTestRuntime(t, seedPath, storedWidget())
	require.NoError(t, rt.Load(context.Background()))

	assert.Len(t, rt.Endpoints.List(context.Background()), 2, "the stored widget route wins over the seeded copy")
	assert.Equal(t, 2, repo.count())

	_, err := rt.Dispatcher.Handle(context.Background(), Request{Method: "GET", Path: "/status/db"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 AS ok", exec.lastCall().SQL)

	_, err = rt.Dispatcher.Handle(context.Background(), Request{Method: "GET", Path: "/widgets/7"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7)}, exec.lastCall().Args)
}

func TestRuntime_LoadKeepsCollidingDefinitionsListed(t *testing.T) {
	twin := storedWidget()
	twin.ID = uuid.MustParse("00000000-0000-0000-0000-0000000000b2")
	twin.Path = "/widgets/:widget_id"
	twin.Params[0].Name = "widget_id"

	broken := storedWidget()
	broken.ID = uuid.MustParse("00000000-0000-0000-0000-0000000000b3")
	broken.Path = "widgets/:id"

	rt, _, _ := newTestRuntime(t, "", storedWidget(), twin, broken)
	require.NoError(t, rt.Load(context.Background()))

	assert.Len(t, rt.Endpoints.List(context.Background()), 2, "unparseable paths are dropped, collisions stay listed")

	_, err := rt.Dispatcher.Handle(context.Background(), Request{Method: "GET", Path: "/widgets/1"})
	assert.NoError(t, err)
}

func TestRuntime_LoadStoreError(t *testing.T) {
	rt, _, repo := newTestRuntime(t, "")
	repo.listErr = errors.New("connection refused")

	err := rt.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRuntime_MissingSeedFileIsNotFatal(t *testing.T) {
	rt, _, _ := newTestRuntime(t, filepath.Join(t.TempDir(), "absent.yaml"), storedWidget())
	require.NoError(t, rt.Load(context.Background()))

	assert.Len(t, rt.Endpoints.List(context.Background()), 1)
}

func TestRuntime_RoleSource(t *testing.T) {
	rt, _, _ := newTestRuntime(t, "")
	ctx := context.Background()

	_, err := rt.Roles.Create(ctx, "support", "")
	require.NoError(t, err)
	require.NoError(t, rt.Roles.AddMember(ctx, "support", "user-9"))

	roles, err := rt.RoleSource().RolesForUser(ctx, testProjectID, "user-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"support"}, roles)

	rt.Close()
}

func TestRuntime_UnknownFunction(t *testing.T) {
	rt, exec, _ := newTestRuntime(t, "")

	_, err := rt.Dispatcher.HandleFunction(context.Background(), FunctionRequest{Schema: "public", Name: "ghost", Auth: access.Anonymous})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 0, exec.callCount())
}

func TestRuntime_Status(t *testing.T) {
	inactive := storedWidget()
	inactive.ID = uuid.MustParse("00000000-0000-0000-0000-0000000000b2")
	inactive.Path = "/gadgets/:id"
	inactive.IsActive = false

	rt, exec, _ := newTestRuntime(t, "", storedWidget(), inactive)
	require.NoError(t, rt.Load(context.Background()))

	status := rt.Status(context.Background())
	assert.Equal(t, 2, status.Endpoints)
	assert.Equal(t, 1, status.ActiveEndpoints)
	assert.True(t, status.DatabaseReachable)
	assert.Nil(t, status.Pool)
	assert.Equal(t, "SELECT 1", exec.lastCall().SQL)

	exec.err = &apperrors.ExecutionError{Kind: apperrors.Timeout, Message: "timed out waiting for a database connection"}
	assert.False(t, rt.Status(context.Background()).DatabaseReachable)
}
