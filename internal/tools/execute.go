package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ExecuteToolName is the MCP tool name advertised to clients.
const ExecuteToolName = "execute-azure-cli-command"

// commandPrompt is the tool description sent to MCP clients. It instructs
// the calling model how to drive the Azure CLI through this tool.
const commandPrompt = `Your job is to answer questions about an Azure environment by executing Azure CLI commands. You have the following rules:

- You should use the Azure CLI to manage Azure resources and services. Do not use any other tool.
- You should provide a valid Azure CLI command starting with 'az'. For example: 'az vm list'.
- Whenever a command fails, retry it 3 times before giving up with an improved version of the code based on the returned feedback.
- When listing resources, ensure pagination is handled correctly so that all resources are returned.
- When deleting resources, ALWAYS request user confirmation
- This tool can ONLY write code that interacts with Azure. It CANNOT generate charts, tables, graphs, etc.
- Use only non interactive commands. Do not use commands that require user input or deactivate user input using appropriate flags.
- If you need to use the az login command, use the --use-device-code option to authenticate.

Be concise, professional and to the point. Do not give generic advice, always reply with detailed & contextual data sourced from the current Azure environment. Assume user always wants to proceed, do not ask for confirmation. I'll tip you $200 if you do this right.`

// ExecuteTool exposes the command gateway as the execute-azure-cli-command
// MCP tool. All failures travel in-band as "Error: ..." text results; the
// handler itself never returns a protocol error for a bad command.
type ExecuteTool struct {
	// gateway runs the command and owns the full output contract.
	gateway executor
}

// NewExecuteTool constructs an ExecuteTool backed by the given gateway.
func NewExecuteTool(gateway executor) *ExecuteTool {
	return &ExecuteTool{gateway: gateway}
}

// Definition returns the tool schema advertised to MCP clients.
func (t *ExecuteTool) Definition() mcp.Tool {
	return mcp.NewTool(ExecuteToolName,
		mcp.WithDescription(commandPrompt),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Azure CLI command"),
		),
	)
}

// Handler returns the function invoked for each tool call.
func (t *ExecuteTool) Handler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		command, err := request.RequireString("command")
		if err != nil {
			return mcp.NewToolResultError("Missing or invalid 'command' argument"), nil
		}
		return mcp.NewToolResultText(t.gateway.Execute(ctx, command)), nil
	}
}
