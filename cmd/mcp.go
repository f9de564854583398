// mcp.go implements "rustscout mcp": serving search/replace/undo over
// the Model Context Protocol.

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rustscout/rustscout/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve rustscout tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdio, exposing search,
replace, and undo as tools for LLM clients.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return mcp.Serve()
		},
	}
}
