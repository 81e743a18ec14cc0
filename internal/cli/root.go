package cli

import (
	"github.com/spf13/cobra"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/refine"
	"github.com/alexanderramin/inkwell/internal/service"
)

// App holds the services and settings CLI commands run against.
type App struct {
	Pipelines service.RefineService
	Quality   service.QualityService

	// Stages is used when pipeline create gets no --stages flag.
	Stages []domain.RefinementStage
	// Prompt is the default context for stage prompts.
	Prompt refine.PromptConfig
	// LLMEnabled gates commands that need a completion backend.
	LLMEnabled bool

	// IsInteractive reports whether stdout is a terminal. Nil means no.
	IsInteractive func() bool
	// Confirm asks a yes/no question. Nil means destructive commands
	// require --yes.
	Confirm func(title string) (bool, error)
	// ServeMCP blocks serving the MCP tools on stdio.
	ServeMCP func() error
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

// NewRootCmd creates the top-level "inkwell" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "inkwell",
		Short:         "Refinement pipelines and quality alerts for novel chapters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newPipelineCmd(app),
		newQualityCmd(app),
		newStagesCmd(),
		newMCPCmd(app),
	)

	return root
}
