// Package tools defines the MCP tools exposed by azmcp.
// Each tool bundles its wire definition and its handler so the server
// command can register them without knowing tool internals.
package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool provides both the definition and the handler for one MCP tool.
type Tool interface {
	// Definition returns the tool schema advertised to MCP clients.
	Definition() mcp.Tool

	// Handler returns the function invoked for each tool call.
	Handler() server.ToolHandlerFunc
}

// executor is the interface tools invoke to run an Azure CLI command.
// *azcli.Gateway satisfies it; tests inject a fake.
type executor interface {
	// Execute runs one Azure CLI command line and returns its textual result.
	Execute(ctx context.Context, command string) string
}

// Register adds every tool to the MCP server.
func Register(s *server.MCPServer, tools ...Tool) {
	for _, t := range tools {
		s.AddTool(t.Definition(), t.Handler())
	}
}
