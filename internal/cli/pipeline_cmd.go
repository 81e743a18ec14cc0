package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/inkwell/internal/cli/formatter"
	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/importer"
	"github.com/alexanderramin/inkwell/internal/refine"
	"github.com/alexanderramin/inkwell/internal/service"
)

var errLLMDisabled = errors.New("the completion backend is disabled; set INKWELL_LLM_ENABLED=true or llm.enabled in the config file")

func newPipelineCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pipeline",
		Aliases: []string{"p"},
		Short:   "Create and run refinement pipelines",
		Long: `Create and run refinement pipelines.

Commands taking an ID accept the full id, any unique prefix of it, or
"latest" for the most recently created pipeline.`,
	}

	cmd.AddCommand(
		newPipelineCreateCmd(app),
		newPipelineListCmd(app),
		newPipelineShowCmd(app),
		newPipelineRunCmd(app),
		newPipelinePauseCmd(app),
		newPipelineResumeCmd(app),
		newPipelineRetryCmd(app),
		newPipelineStopCmd(app),
		newPipelineReportCmd(app),
		newPipelineExportCmd(app),
		newPipelineRemoveCmd(app),
	)

	return cmd
}

func newPipelineCreateCmd(app *App) *cobra.Command {
	var dir, manifest string
	var stages []domain.RefinementStage

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Import chapters and create an idle pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (dir == "") == (manifest == "") {
				return fmt.Errorf("exactly one of --dir or --manifest is required")
			}

			var chapters []refine.ChapterInput
			var err error
			source := dir
			if manifest != "" {
				source = manifest
				chapters, err = importer.ImportManifest(manifest)
			} else {
				chapters, err = importer.ImportDir(dir)
			}
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("stages") {
				stages = app.Stages
			}
			p, err := app.Pipelines.Create(cmd.Context(), chapters, stages, source)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created pipeline %s with %d chapters and %d stages\n",
				formatter.TruncID(p.ID), len(p.Tasks), len(p.Stages))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory of .md, .txt or .html chapter files")
	cmd.Flags().StringVar(&manifest, "manifest", "", "JSON chapter manifest")
	cmd.Flags().Var(newStageListValue(&stages), "stages", "Comma-separated stage ids (see 'inkwell stages')")

	return cmd
}

func newPipelineListCmd(app *App) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipelines, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !domain.ValidPipelineStatuses[status] {
				return fmt.Errorf("invalid status %q (idle|running|paused|completed|failed)", status)
			}
			list, err := app.Pipelines.List(cmd.Context(), domain.PipelineStatus(status))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPipelineList(list))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only pipelines in this status")

	return cmd
}

func newPipelineShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show pipeline detail and per-chapter status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := getPipeline(cmd, app, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPipelineDetail(p))
			return nil
		},
	}
}

// runFlags are shared by run and resume.
type runFlags struct {
	onError string
	watch   bool
	score   bool
	prompt  refine.PromptConfig
}

func (f *runFlags) register(cmd *cobra.Command, app *App) {
	cmd.Flags().StringVar(&f.onError, "on-error", "", "What a failed stage does: continue or halt (required)")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "Live view with progress and streamed text (default on a terminal)")
	cmd.Flags().BoolVar(&f.score, "score", false, "Score each chapter after its final stage")
	cmd.Flags().StringVar(&f.prompt.Genre, "genre", app.Prompt.Genre, "Genre given to stage prompts")
	cmd.Flags().StringVar(&f.prompt.Style, "style", app.Prompt.Style, "Target style given to stage prompts")
	cmd.Flags().StringVar(&f.prompt.Audience, "audience", app.Prompt.Audience, "Audience given to stage prompts")
	cmd.Flags().StringVar(&f.prompt.Extra, "extra", app.Prompt.Extra, "Extra instructions appended to every prompt")
	_ = cmd.MarkFlagRequired("on-error")
}

func (f *runFlags) execute(cmd *cobra.Command, app *App, input string) error {
	policy, err := service.ParseErrorPolicy(f.onError)
	if err != nil {
		return err
	}
	if !app.LLMEnabled {
		return errLLMDisabled
	}
	id, err := resolvePipelineID(cmd.Context(), app, input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	opts := service.RunOptions{OnError: policy, Prompt: f.prompt, ScoreCompleted: f.score}
	watch := app.interactive()
	if cmd.Flags().Changed("watch") {
		watch = f.watch
	}

	var p *domain.RefinementPipeline
	if watch {
		p, err = runWatched(ctx, cmd, app, id, opts)
	} else {
		p, err = runPlain(ctx, cmd.OutOrStdout(), app, id, opts)
	}
	if p != nil {
		fmt.Fprint(cmd.OutOrStdout(), runSummary(p))
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		fmt.Fprintf(cmd.OutOrStdout(), "Interrupted; pipeline paused. Resume with 'inkwell pipeline resume %s --on-error %s'.\n",
			formatter.TruncID(id), policy)
		return nil
	}
	return err
}

func newPipelineRunCmd(app *App) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run ID",
		Short: "Process a pipeline until it finishes, halts or is interrupted",
		Long: "Run sends each chapter through every stage in order. Ctrl+C pauses\n" +
			"the pipeline; the stage in flight is redone on the next run.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.execute(cmd, app, args[0])
		},
	}
	f.register(cmd, app)

	return cmd
}

func newPipelinePauseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pause ID",
		Short: "Pause a running pipeline after the stage in flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePipelineID(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			p, err := app.Pipelines.Pause(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pipeline %s is %s\n", formatter.TruncID(p.ID), p.Status)
			return nil
		},
	}
}

func newPipelineResumeCmd(app *App) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "resume ID",
		Short: "Resume a paused pipeline and keep processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.execute(cmd, app, args[0])
		},
	}
	f.register(cmd, app)

	return cmd
}

func newPipelineRetryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "retry ID",
		Short: "Reset failed chapters to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePipelineID(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			n, err := app.Pipelines.Retry(cmd.Context(), id)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No failed chapters to retry.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed chapter(s). Run 'inkwell pipeline run %s --on-error ...' to process them.\n",
				n, formatter.TruncID(id))
			return nil
		},
	}
}

func newPipelineStopCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "stop ID",
		Short: "Stop a pipeline for good",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePipelineID(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			ok, err := confirm(app, yes, fmt.Sprintf("Stop pipeline %s? It cannot be resumed.", formatter.TruncID(id)))
			if err != nil || !ok {
				return err
			}
			p, err := app.Pipelines.Stop(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped pipeline %s (%d/%d stages done)\n",
				formatter.TruncID(p.ID), p.Progress.Completed, p.Progress.Total)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newPipelineReportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "report ID",
		Short: "Print a Markdown report of the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePipelineID(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			report, err := app.Pipelines.Report(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func newPipelineExportCmd(app *App) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Export original and refined text of completed chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			id, err := resolvePipelineID(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, createErr := os.Create(out)
				if createErr != nil {
					return fmt.Errorf("creating %s: %w", out, createErr)
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				w = f
			}

			n, err := app.Pipelines.Export(cmd.Context(), id, service.ExportFormat(format), w)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d chapter(s) to %s\n", n, out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", string(service.ExportJSON), "Output format: json or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to a file instead of stdout")

	return cmd
}

func newPipelineRemoveCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Delete a pipeline and its chapters",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePipelineID(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			ok, err := confirm(app, yes, fmt.Sprintf("Delete pipeline %s and all refined text?", formatter.TruncID(id)))
			if err != nil || !ok {
				return err
			}
			if err := app.Pipelines.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed pipeline %s\n", formatter.TruncID(id))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func getPipeline(cmd *cobra.Command, app *App, input string) (*domain.RefinementPipeline, error) {
	id, err := resolvePipelineID(cmd.Context(), app, input)
	if err != nil {
		return nil, err
	}
	return app.Pipelines.Get(cmd.Context(), id)
}

func runSummary(p *domain.RefinementPipeline) string {
	return fmt.Sprintf("\nPipeline %s %s  %s\n",
		formatter.TruncID(p.ID),
		formatter.PipelineStatusPill(p.Status),
		formatter.RenderProgress(p.Progress, 30))
}
