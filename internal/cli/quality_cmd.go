package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/inkwell/internal/cli/formatter"
	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/importer"
	"github.com/alexanderramin/inkwell/internal/quality"
)

func newQualityCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "quality",
		Aliases: []string{"q"},
		Short:   "Record chapter scores and review quality alerts",
	}

	cmd.AddCommand(
		newQualityRecordCmd(app),
		newQualityScoreCmd(app),
		newQualityAlertsCmd(app),
		newQualityStatsCmd(app),
		newQualityReportCmd(app),
		newQualityHistoryCmd(app),
		newQualityThresholdsCmd(app),
		newQualityClearCmd(app),
	)

	return cmd
}

func newQualityRecordCmd(app *App) *cobra.Command {
	var chapter int
	var raw domain.RawQualityScores

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one chapter's scores and show the alerts they raise",
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts, err := app.Quality.Record(cmd.Context(), chapter, raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded chapter %d\n", chapter)
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatAlerts(alerts))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&chapter, "chapter", 0, "Chapter number, starting at 1")
	f.Float64Var(&raw.Overall, "overall", 0, "Overall score 0-100")
	f.Float64Var(&raw.AIFlavor, "ai-flavor", 0, "Machine-like prose 0-100, higher is worse")
	f.Float64Var(&raw.CoolPointDensity, "cool-point", 0, "Payoff moments per scene, 0-1")
	f.Float64Var(&raw.Pacing, "pacing", 0, "Pacing score 0-100")
	f.Float64Var(&raw.Consistency, "consistency", 0, "Consistency score 0-100")
	f.Float64Var(&raw.Repetition, "repetition", 0, "Repetition 0-100, higher is worse")
	for _, name := range []string{"chapter", "overall", "ai-flavor", "cool-point", "pacing", "consistency", "repetition"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newQualityScoreCmd(app *App) *cobra.Command {
	var chapter int
	var file string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Have the model score a chapter file and record the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.LLMEnabled {
				return errLLMDisabled
			}
			ch, err := importer.ReadChapterFile(file)
			if err != nil {
				return err
			}

			stop := func() {}
			if app.interactive() {
				stop = formatter.StartSpinner(cmd.ErrOrStderr(), "Scoring "+ch.Title)
			}
			raw, alerts, err := app.Quality.Score(cmd.Context(), chapter, ch.Content)
			stop()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chapter %d: %s\n", chapter, ch.Title)
			fmt.Fprint(out, formatter.FormatScores(raw))
			fmt.Fprint(out, formatter.FormatAlerts(alerts))
			return nil
		},
	}

	cmd.Flags().IntVar(&chapter, "chapter", 0, "Chapter number, starting at 1")
	cmd.Flags().StringVar(&file, "file", "", "Chapter file (.md, .txt or .html)")
	_ = cmd.MarkFlagRequired("chapter")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newQualityAlertsCmd(app *App) *cobra.Command {
	var alertType, severity string
	var minPriority int
	var active bool

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List alerts by descending priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := quality.AlertFilter{
				Type:        domain.AlertType(alertType),
				Severity:    domain.Severity(severity),
				MinPriority: minPriority,
			}
			if err := checkFilter(filter); err != nil {
				return err
			}

			var alerts []domain.QualityAlert
			var err error
			if active {
				alerts, err = app.Quality.Active(cmd.Context())
				alerts = keepMatching(alerts, filter)
			} else {
				alerts, err = app.Quality.Alerts(cmd.Context(), filter)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatAlerts(alerts))
			return nil
		},
	}

	cmd.Flags().StringVar(&alertType, "type", "", "Only this alert type")
	cmd.Flags().StringVar(&severity, "severity", "", "Only this severity (low|medium|high|critical)")
	cmd.Flags().IntVar(&minPriority, "min-priority", 0, "Only alerts at or above this priority")
	cmd.Flags().BoolVar(&active, "active", false, "Only conditions that still hold for the current history")

	return cmd
}

func newQualityStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count alerts by type and severity",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := app.Quality.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatAlertStats(stats))
			return nil
		},
	}
}

func newQualityReportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print a Markdown quality report",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.Quality.Report(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func newQualityHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the recorded score snapshots, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := app.Quality.History(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatHistory(history))
			return nil
		},
	}
}

func newQualityThresholdsCmd(app *App) *cobra.Command {
	var (
		lowScore, aiFlavor, coolPoint, pacing, consistency, repetition float64
		minRun, window                                                 int
		enable, disable                                                []string
	)

	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Show or change alert thresholds",
		Long: "With no flags the current thresholds are printed. Any flag given\n" +
			"updates that value and leaves the rest as they are.",
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := domain.ThresholdsPatch{}
			changed := false
			floats := []struct {
				flag string
				val  *float64
				dst  **float64
			}{
				{"low-score", &lowScore, &patch.LowScoreThreshold},
				{"ai-flavor", &aiFlavor, &patch.AIFlavorThreshold},
				{"cool-point", &coolPoint, &patch.CoolPointMinDensity},
				{"pacing", &pacing, &patch.PacingThreshold},
				{"consistency", &consistency, &patch.ConsistencyThreshold},
				{"repetition", &repetition, &patch.RepetitionThreshold},
			}
			for _, f := range floats {
				if cmd.Flags().Changed(f.flag) {
					*f.dst = f.val
					changed = true
				}
			}
			if cmd.Flags().Changed("low-score-run") {
				patch.LowScoreMinRun = &minRun
				changed = true
			}
			if cmd.Flags().Changed("cool-point-window") {
				patch.CoolPointWindow = &window
				changed = true
			}
			toggles, err := detectorToggles(enable, disable)
			if err != nil {
				return err
			}
			if len(toggles) > 0 {
				patch.Enable = toggles
				changed = true
			}

			var th domain.Thresholds
			if changed {
				th, err = app.Quality.UpdateThresholds(cmd.Context(), patch)
			} else {
				th, err = app.Quality.Thresholds(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatThresholds(th))
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&lowScore, "low-score", 0, "Overall score below which a chapter counts as low")
	f.Float64Var(&aiFlavor, "ai-flavor", 0, "AI-flavor score above which an alert is raised")
	f.Float64Var(&coolPoint, "cool-point", 0, "Minimum average cool-point density over the window")
	f.Float64Var(&pacing, "pacing", 0, "Pacing score below which an alert is raised")
	f.Float64Var(&consistency, "consistency", 0, "Consistency score below which an alert is raised")
	f.Float64Var(&repetition, "repetition", 0, "Repetition score above which an alert is raised")
	f.IntVar(&minRun, "low-score-run", 0, "Consecutive low chapters needed for a low-score alert")
	f.IntVar(&window, "cool-point-window", 0, "Chapters averaged by the cool-point detector")
	f.StringSliceVar(&enable, "enable", nil, "Switch detectors on by alert type")
	f.StringSliceVar(&disable, "disable", nil, "Switch detectors off by alert type")

	return cmd
}

func newQualityClearCmd(app *App) *cobra.Command {
	var since string
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete recorded score history",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cutoff *time.Time
			title := "Delete all recorded quality history?"
			if since != "" {
				ts, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid --since %q: expected RFC3339, e.g. 2025-03-15T09:00:00Z", since)
				}
				cutoff = &ts
				title = fmt.Sprintf("Delete quality history recorded before %s?", ts.Format(time.RFC3339))
			}

			ok, err := confirm(app, yes, title)
			if err != nil || !ok {
				return err
			}
			if err := app.Quality.Clear(cmd.Context(), cutoff); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Quality history cleared.")
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Only delete snapshots recorded before this RFC3339 time")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func checkFilter(f quality.AlertFilter) error {
	if f.Type != "" && !validAlertType(f.Type) {
		return fmt.Errorf("invalid alert type %q (%s)", f.Type, alertTypeList())
	}
	if f.Severity != "" && !validSeverity(f.Severity) {
		return fmt.Errorf("invalid severity %q", f.Severity)
	}
	return nil
}

func keepMatching(alerts []domain.QualityAlert, f quality.AlertFilter) []domain.QualityAlert {
	var out []domain.QualityAlert
	for _, a := range alerts {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

func detectorToggles(enable, disable []string) (map[domain.AlertType]bool, error) {
	out := make(map[domain.AlertType]bool)
	for _, list := range []struct {
		names []string
		on    bool
	}{{enable, true}, {disable, false}} {
		for _, name := range list.names {
			t := domain.AlertType(strings.TrimSpace(name))
			if !validAlertType(t) {
				return nil, fmt.Errorf("invalid alert type %q (%s)", name, alertTypeList())
			}
			if prev, seen := out[t]; seen && prev != list.on {
				return nil, fmt.Errorf("alert type %q is both enabled and disabled", t)
			}
			out[t] = list.on
		}
	}
	return out, nil
}

func validAlertType(t domain.AlertType) bool {
	for _, known := range domain.AllAlertTypes {
		if t == known {
			return true
		}
	}
	return false
}

func validSeverity(s domain.Severity) bool {
	for _, known := range domain.AllSeverities {
		if s == known {
			return true
		}
	}
	return false
}

func alertTypeList() string {
	names := make([]string, len(domain.AllAlertTypes))
	for i, t := range domain.AllAlertTypes {
		names[i] = string(t)
	}
	return strings.Join(names, "|")
}
