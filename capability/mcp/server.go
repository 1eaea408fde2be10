// Package mcp exposes a capability registry as a Model Context Protocol
// server so external MCP clients can list and call kernel capabilities.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/agentkernel/capability"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
)

// Options configures the MCP server.
type Options struct {
	Name    string
	Version string
	Logger  logging.Logger
}

// Server publishes every capability of a registry as an MCP tool.
type Server struct {
	registry  *capability.Registry
	mcpServer *mcpserver.MCPServer
	logger    logging.Logger
}

// NewServer builds an MCP server over registry. Capabilities registered
// after construction are picked up by Sync.
func NewServer(registry *capability.Registry, optFns ...func(o *Options)) *Server {
	opts := Options{Name: "agentkernel", Version: "0.1.0", Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		registry:  registry,
		mcpServer: mcpserver.NewMCPServer(opts.Name, opts.Version, mcpserver.WithToolCapabilities(true)),
		logger:    opts.Logger,
	}
	s.Sync()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcpServer }

// Sync (re)publishes the registry listing. For duplicate names only the
// first registration is published, matching registry lookup.
func (s *Server) Sync() {
	seen := map[string]bool{}
	var tools []mcpserver.ServerTool
	for _, info := range s.registry.List() {
		if seen[info.Name] {
			continue
		}
		seen[info.Name] = true
		tool, err := s.toolFor(info)
		if err != nil {
			s.logger.Warn("mcp.tool.skipped", "capability", info.Name, "error", err)
			continue
		}
		tools = append(tools, tool)
	}
	s.mcpServer.SetTools(tools...)
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}

func (s *Server) toolFor(info core.CapabilityInfo) (mcpserver.ServerTool, error) {
	schema := info.InputSchema
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return mcpserver.ServerTool{}, fmt.Errorf("encode input schema: %w", err)
	}
	name := info.Name
	return mcpserver.ServerTool{
		Tool: mcplib.NewToolWithRawSchema(name, info.Description, raw),
		Handler: func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
			return s.call(ctx, name, req.GetArguments())
		},
	}, nil
}

func (s *Server) call(ctx context.Context, name string, args map[string]any) (*mcplib.CallToolResult, error) {
	out, err := s.registry.Call(ctx, name, args)
	if errors.Is(err, capability.ErrNotFound) {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("capability failed", err), nil
	}
	if text, ok := out.(string); ok {
		return mcplib.NewToolResultText(text), nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
