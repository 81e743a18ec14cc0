package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newMCPCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve pipeline and quality tools to an MCP client over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.ServeMCP == nil {
				return errors.New("MCP server is not configured")
			}
			return app.ServeMCP()
		},
	}
}
