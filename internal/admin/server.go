// Package admin exposes a running relay over MCP (SSE transport) so that
// tools and assistants can inspect the registry and inject planner commands.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"rcarelay/internal/config"
	"rcarelay/internal/relay"
	"rcarelay/internal/scene"
	"rcarelay/pkg/logging"
)

const subsystem = "Admin"

// RelayInspector is the part of the router the admin endpoint uses.
type RelayInspector interface {
	Snapshot(ctx context.Context) (relay.Snapshot, error)
	Stats() relay.StatsSnapshot
	DispatchPlannerBatch(ctx context.Context, batch []byte) error
}

// SceneInspector reports the scene forwarder state.
type SceneInspector interface {
	Status() scene.Status
}

// Server is the MCP admin endpoint.
type Server struct {
	cfg   config.AdminConfig
	relay RelayInspector
	scene SceneInspector

	mcpServer *server.MCPServer

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	serveDone  chan struct{}
}

// NewServer creates the endpoint and registers its tools. scene may be nil.
func NewServer(cfg config.AdminConfig, router RelayInspector, forwarder SceneInspector, version string) *Server {
	s := &Server{cfg: cfg, relay: router, scene: forwarder}
	s.mcpServer = server.NewMCPServer(
		"rcarelay-admin",
		version,
		server.WithToolCapabilities(true),
	)
	s.mcpServer.AddTools(s.Tools()...)
	return s
}

// Tools returns the admin tools with their handlers.
func (s *Server) Tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("relay_status",
				mcp.WithDescription("Show the relay registry (planner, units, waiting connections) and activity counters"),
			),
			Handler: s.handleRelayStatus,
		},
		{
			Tool: mcp.NewTool("relay_units",
				mcp.WithDescription("List the names of the registered units"),
			),
			Handler: s.handleRelayUnits,
		},
		{
			Tool: mcp.NewTool("relay_dispatch",
				mcp.WithDescription("Route a '|' separated batch of planner commands (name:payload, or e for shutdown) as if the planner sent it"),
				mcp.WithString("batch",
					mcp.Required(),
					mcp.Description("Planner command batch, for example t:move 1 2|u:stop"),
				),
			),
			Handler: s.handleRelayDispatch,
		},
		{
			Tool: mcp.NewTool("scene_status",
				mcp.WithDescription("Show the scene forwarder connection state and counters"),
			),
			Handler: s.handleSceneStatus,
		},
	}
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// Start binds the admin address and serves SSE in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return fmt.Errorf("admin server already started")
	}

	addr := s.cfg.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind admin endpoint on %s: %w", addr, err)
	}

	baseURL := "http://" + ln.Addr().String()
	sseServer := server.NewSSEServer(
		s.mcpServer,
		server.WithBaseURL(baseURL),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)
	httpServer := &http.Server{
		Handler:           sseServer,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.httpServer = httpServer
	s.listener = ln
	s.serveDone = make(chan struct{})
	done := s.serveDone
	go func() {
		defer close(done)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(subsystem, err, "Admin SSE server error")
		}
	}()

	logging.Info(subsystem, "Admin MCP endpoint listening on %s/sse", baseURL)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the endpoint down. Open SSE streams are cut once ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer, done := s.httpServer, s.serveDone
	s.httpServer, s.listener, s.serveDone = nil, nil, nil
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Debug(subsystem, "Graceful shutdown incomplete (%v), closing open streams", err)
		httpServer.Close()
	}
	<-done
	return nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

type relayStatus struct {
	Registry relay.Snapshot      `json:"registry"`
	Stats    relay.StatsSnapshot `json:"stats"`
}

func (s *Server) handleRelayStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.relay.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read relay state: %v", err)), nil
	}
	return jsonResult(relayStatus{Registry: snap, Stats: s.relay.Stats()})
}

func (s *Server) handleRelayUnits(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.relay.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read relay state: %v", err)), nil
	}
	if len(snap.Units) == 0 {
		return mcp.NewToolResultText("No units registered"), nil
	}
	names := make([]string, 0, len(snap.Units))
	for name := range snap.Units {
		names = append(names, name)
	}
	sort.Strings(names)
	return jsonResult(names)
}

func (s *Server) handleRelayDispatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	batch, err := request.RequireString("batch")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if batch == "" {
		return mcp.NewToolResultError("batch must not be empty"), nil
	}

	logging.Info(subsystem, "Dispatching planner batch %q", batch)
	if err := s.relay.DispatchPlannerBatch(ctx, []byte(batch)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Batch partially delivered: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Dispatched %d command(s)", len(relay.SplitBatch([]byte(batch))))), nil
}

func (s *Server) handleSceneStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.scene == nil {
		return mcp.NewToolResultError("No scene forwarder configured"), nil
	}
	return jsonResult(s.scene.Status())
}
