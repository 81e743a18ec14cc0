package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/inkwell/internal/cli/formatter"
	"github.com/alexanderramin/inkwell/internal/refine"
)

func newStagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the refinement stages in default order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatStageCatalog(refine.Catalog()))
			return nil
		},
	}
}
