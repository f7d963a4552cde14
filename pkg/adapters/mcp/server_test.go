package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/deployd/pkg/adapters/memory"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/resolver"
	"github.com/aretw0/deployd/pkg/supervisor"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *supervisor.Supervisor) {
	t.Helper()
	loader, err := memory.NewLoader(domain.Deployment{
		Name:  "nav",
		Tasks: []domain.TaskActivity{{Name: "planner", TaskModel: "planner::Task"}},
	})
	require.NoError(t, err)

	sup := supervisor.New(memory.NewFactory(memory.WithGenericTasks(true)), supervisor.WithLoader(loader))
	t.Cleanup(func() { _ = sup.Shutdown(context.Background()) })

	res := resolver.New(
		resolver.WithRegistry(resolver.KindDevice, resolver.NameSet("imu")),
	)
	return NewServer(sup, res, "0.1.0", nil), sup
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	switch content := result.Content[0].(type) {
	case mcp.TextContent:
		return content.Text
	case *mcp.TextContent:
		return content.Text
	}
	t.Fatalf("unexpected content %T", result.Content[0])
	return ""
}

func TestServer_SpawnListKill(t *testing.T) {
	s, sup := newTestServer(t)
	ctx := context.Background()

	// 1. Spawn
	spawned, err := s.handleSpawn(ctx, callRequest("spawn_deployment", nil), SpawnArgs{Name: "nav2", Model: "nav"})
	require.NoError(t, err)
	assert.Equal(t, "running", spawned.State)
	assert.Equal(t, map[string]string{"planner": "nav2_planner"}, spawned.Tasks)

	// 2. List
	result, err := s.handleList(ctx, callRequest("list_deployments", nil))
	require.NoError(t, err)
	var infos []DeploymentInfo
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "nav2", infos[0].Name)

	// 3. Kill
	result, err = s.handleKill(ctx, callRequest("kill_deployment", map[string]any{"name": "nav2", "reason": "agent"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "nav2 is dead", text(t, result))
	assert.Empty(t, sup.List())
}

func TestServer_SpawnErrors(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleSpawn(ctx, callRequest("spawn_deployment", nil), SpawnArgs{})
	assert.Error(t, err)

	_, err = s.handleSpawn(ctx, callRequest("spawn_deployment", nil), SpawnArgs{Name: "nav", Backing: "docker"})
	assert.ErrorContains(t, err, "unknown backing")

	_, err = s.handleSpawn(ctx, callRequest("spawn_deployment", nil), SpawnArgs{Name: "ghost"})
	assert.ErrorIs(t, err, domain.ErrDeploymentNotFound)
}

func TestServer_KillErrors(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleKill(ctx, callRequest("kill_deployment", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleKill(ctx, callRequest("kill_deployment", map[string]any{"name": "ghost"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, text(t, result), "deployment not found")
}

func TestServer_Resolve(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleResolve(ctx, callRequest("resolve_service", map[string]any{"name": "imu"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var res resolver.Resolution
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &res))
	assert.Equal(t, resolver.KindDevice, res.Kind)

	result, err = s.handleResolve(ctx, callRequest("resolve_service", map[string]any{"name": "lidar"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, text(t, result), "service name unresolved")
}
