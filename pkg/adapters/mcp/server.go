package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/deployd/internal/logging"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/ports"
	"github.com/aretw0/deployd/pkg/resolver"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DeploymentInfo describes a live deployment to an agent.
type DeploymentInfo struct {
	Name  string            `json:"name" jsonschema_description:"The deployment (process) name"`
	Model string            `json:"model" jsonschema_description:"The deployment model it was built from"`
	State string            `json:"state" jsonschema_description:"unspawned, running or dead"`
	PID   int               `json:"pid" jsonschema_description:"Process ID of the host running the tasks"`
	Tasks map[string]string `json:"tasks" jsonschema_description:"Logical task name to deployed task name"`
}

// SpawnArgs are the arguments of the spawn_deployment tool.
type SpawnArgs struct {
	Name    string `json:"name"`
	Model   string `json:"model,omitempty"`
	Backing string `json:"backing,omitempty"`
	Wait    bool   `json:"wait,omitempty"`
}

// Supervisor defines what the MCP server needs from the owning registry.
type Supervisor interface {
	List() []string
	Get(name string) (ports.Process, bool)
	DeployModel(ctx context.Context, name, modelName string, backing domain.Backing, opts domain.SpawnOptions) (ports.Process, error)
	Kill(ctx context.Context, name string, status domain.Status) error
}

// Resolver resolves service names.
type Resolver interface {
	Resolve(ctx context.Context, name string) (resolver.Resolution, error)
}

// Server exposes a supervisor as MCP tools.
type Server struct {
	supervisor Supervisor
	resolver   Resolver
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(sup Supervisor, res Resolver, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		supervisor: sup,
		resolver:   res,
		logger:     logger,
		mcpServer:  server.NewMCPServer("deployd-mcp", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	// TOOL: list_deployments
	s.mcpServer.AddTool(mcp.NewTool("list_deployments",
		mcp.WithDescription("List the live deployments with their state and deployed task names."),
	), s.handleList)

	// TOOL: spawn_deployment
	spawnTool := mcp.NewTool("spawn_deployment",
		mcp.WithDescription("Deploy a deployment model under a process name and spawn it."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Process name, unique among live deployments")),
		mcp.WithString("model", mcp.Description("Deployment model to deploy (defaults to name)")),
		mcp.WithString("backing", mcp.Description("inprocess or external (defaults to external when a command is configured)")),
		mcp.WithBoolean("wait", mcp.Description("Wait until every task is ready")),
		mcp.WithOutputSchema[DeploymentInfo](),
	)
	s.mcpServer.AddTool(spawnTool, mcp.NewStructuredToolHandler(s.handleSpawn))

	// TOOL: kill_deployment
	s.mcpServer.AddTool(mcp.NewTool("kill_deployment",
		mcp.WithDescription("Kill a live deployment, disposing of all its tasks."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Process name")),
		mcp.WithString("reason", mcp.Description("Why the deployment is killed, recorded in its exit status")),
	), s.handleKill)

	// TOOL: resolve_service
	s.mcpServer.AddTool(mcp.NewTool("resolve_service",
		mcp.WithDescription("Resolve a service name against devices, definitions, compositions and task models, in that order."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Service name")),
	), s.handleResolve)
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos := []DeploymentInfo{}
	for _, name := range s.supervisor.List() {
		if proc, ok := s.supervisor.Get(name); ok {
			infos = append(infos, info(proc))
		}
	}
	jsonBytes, _ := json.Marshal(infos)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleSpawn(ctx context.Context, request mcp.CallToolRequest, args SpawnArgs) (DeploymentInfo, error) {
	if args.Name == "" {
		return DeploymentInfo{}, errors.New("name is required")
	}
	if args.Model == "" {
		args.Model = args.Name
	}
	backing := domain.Backing(args.Backing)
	if backing != "" && !backing.Valid() {
		return DeploymentInfo{}, fmt.Errorf("unknown backing %q", args.Backing)
	}

	proc, err := s.supervisor.DeployModel(ctx, args.Name, args.Model, backing, domain.SpawnOptions{Wait: args.Wait})
	if err != nil {
		s.logger.Warn("MCP Spawn failed", "deployment", args.Name, "err", err)
		return DeploymentInfo{}, fmt.Errorf("spawn failed: %w", err)
	}
	return info(proc), nil
}

func (s *Server) handleKill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status := domain.DefaultStatus()
	if reason := request.GetString("reason", ""); reason != "" {
		status = status.WithReason(reason)
	}

	err = s.supervisor.Kill(ctx, name, status)
	var disposal *domain.DisposalError
	switch {
	case err == nil:
		return mcp.NewToolResultText(fmt.Sprintf("%s is dead", name)), nil
	case errors.As(err, &disposal):
		return mcp.NewToolResultText(fmt.Sprintf("%s is dead, but some tasks failed to dispose: %v", name, disposal.Tasks())), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("kill failed: %v", err)), nil
	}
}

func (s *Server) handleResolve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.resolver.Resolve(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	jsonBytes, _ := json.Marshal(res)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	// EXPOSE: deployd://deployments
	s.mcpServer.AddResource(mcp.NewResource("deployd://deployments", "Live Deployments",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, _ := json.Marshal(s.supervisor.List())
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "deployd://deployments",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func info(proc ports.Process) DeploymentInfo {
	model := proc.Model()
	tasks := make(map[string]string, len(model.Tasks))
	for _, logical := range model.TaskNames() {
		if task, err := proc.Task(logical); err == nil {
			tasks[logical] = task.Name()
		}
	}
	return DeploymentInfo{
		Name:  proc.Name(),
		Model: model.Name,
		State: proc.State().String(),
		PID:   proc.PID(),
		Tasks: tasks,
	}
}
