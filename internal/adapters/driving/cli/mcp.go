package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sourcestack/internal/adapters/driving/mcp"
	"github.com/custodia-labs/sourcestack/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --port to serve streamable HTTP on 127.0.0.1 instead, for example to
test with the MCP Inspector.

Jobs interrupted by a previous server are recovered before serving.

Examples:
  # Stdio mode (default, for Claude Desktop)
  sourcestack mcp serve

  # HTTP mode (for MCP Inspector)
  sourcestack mcp serve --port 8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "sourcestack": {
        "command": "/path/to/sourcestack",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Jobs: jobService,
		Auth: authService,
	}

	server, err := mcp.NewServer(ports, version)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if recoverJobs != nil {
		requeued, failed, err := recoverJobs(ctx)
		if err != nil {
			logger.Warn("recovering interrupted jobs: %v", err)
		} else if requeued+failed > 0 {
			logger.Info("recovered jobs: %d re-queued, %d marked failed", requeued, failed)
		}
	}

	if port > 0 {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		cmd.PrintErrf("MCP server listening on http://%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
