// Package mcpserver exposes queue inspection and deployment triggers as MCP
// tools over streamable HTTP.
package mcpserver

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/edvin/paas/internal/core"
)

const version = "1.0.0"

// Server is an http.Handler speaking the MCP streamable HTTP transport.
type Server struct {
	http  *server.StreamableHTTPServer
	tools []string
}

func New(cfg *Config, services *core.Services, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "mcp").Logger()
	mcpSrv := server.NewMCPServer(cfg.Name, version,
		server.WithInstructions(cfg.Instructions),
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	tools := selectTools(cfg, buildTools(services))
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Tool.Name)
	}
	mcpSrv.AddTools(tools...)
	logger.Info().Int("tools", len(tools)).Bool("readonly", cfg.ReadOnly).Msg("mcp tools registered")

	return &Server{
		http:  server.NewStreamableHTTPServer(mcpSrv, server.WithEndpointPath("/mcp")),
		tools: names,
	}
}

// selectTools applies the read-only switch and per-tool overrides.
func selectTools(cfg *Config, all []tool) []server.ServerTool {
	var out []server.ServerTool
	for _, t := range all {
		if t.mutating && cfg.ReadOnly {
			continue
		}
		if o, ok := cfg.Overrides[t.Tool.Name]; ok {
			if o.Disabled {
				continue
			}
			if o.Description != "" {
				t.Tool.Description = o.Description
			}
		}
		out = append(out, t.ServerTool)
	}
	return out
}

// Tools lists the registered tool names.
func (s *Server) Tools() []string {
	return s.tools
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.http.ServeHTTP(w, r)
}
