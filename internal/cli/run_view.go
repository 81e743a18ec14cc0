package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/alexanderramin/inkwell/internal/cli/formatter"
	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/refine"
	"github.com/alexanderramin/inkwell/internal/service"
)

const (
	tailLines = 6
	logLines  = 8
)

// ── Messages ─────────────────────────────────────────────────────────────────

type runEventMsg struct{ ev service.RunEvent }

type chunkMsg struct {
	taskID string
	text   string
}

type runDoneMsg struct {
	pipeline *domain.RefinementPipeline
	err      error
}

// ── Model ────────────────────────────────────────────────────────────────────

type runKeys struct {
	Quit key.Binding
}

var defaultRunKeys = runKeys{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "pause and quit")),
}

// runView renders a pipeline run as it happens. Run itself executes in a
// goroutine and feeds the view through messages.
type runView struct {
	id      string
	cancel  context.CancelFunc
	keys    runKeys
	spinner spinner.Model
	width   int

	progress domain.Progress
	chapter  string
	stage    domain.RefinementStage
	tail     strings.Builder
	log      []string

	stopping bool
	done     bool
	result   *domain.RefinementPipeline
	err      error
}

func newRunView(id string, cancel context.CancelFunc) *runView {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(formatter.ColorTitle)
	return &runView{id: id, cancel: cancel, keys: defaultRunKeys, spinner: s, width: 80}
}

func (m *runView) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *runView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && !m.stopping {
			m.stopping = true
			m.cancel()
		}
		return m, nil

	case runEventMsg:
		m.apply(msg.ev)
		return m, nil

	case chunkMsg:
		m.tail.WriteString(msg.text)
		return m, nil

	case runDoneMsg:
		m.done = true
		m.result = msg.pipeline
		m.err = msg.err
		if msg.pipeline != nil {
			m.progress = msg.pipeline.Progress
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *runView) apply(ev service.RunEvent) {
	m.progress = ev.Progress
	switch ev.Kind {
	case service.EventStageStarted:
		m.chapter = ev.ChapterTitle
		m.stage = ev.Stage
		m.tail.Reset()
	case service.EventStageCompleted:
		m.addLog(fmt.Sprintf("%s %s · %s", formatter.StyleOK.Render("✓"), ev.ChapterTitle, refine.Label(ev.Stage)))
	case service.EventTaskFailed:
		m.addLog(fmt.Sprintf("%s %s · %s: %v", formatter.StyleBad.Render("✗"), ev.ChapterTitle, refine.Label(ev.Stage), ev.Err))
	case service.EventResultDropped:
		m.addLog(formatter.Dim(fmt.Sprintf("  dropped %s · %s (pipeline %s)", ev.ChapterTitle, refine.Label(ev.Stage), ev.Status)))
	case service.EventChapterScored:
		line := fmt.Sprintf("  scored %s", ev.ChapterTitle)
		if n := len(ev.Alerts); n > 0 {
			line += fmt.Sprintf(", %d alert(s), top: %s", n, ev.Alerts[0].Title)
		}
		m.addLog(line)
	case service.EventScoreFailed:
		m.addLog(formatter.Dim(fmt.Sprintf("  scoring %s failed: %v", ev.ChapterTitle, ev.Err)))
	}
}

func (m *runView) addLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > logLines {
		m.log = m.log[len(m.log)-logLines:]
	}
}

func (m *runView) View() string {
	var b strings.Builder

	b.WriteString(formatter.Header("Pipeline "+formatter.TruncID(m.id)) + "\n")
	b.WriteString(formatter.RenderProgress(m.progress, progressWidth(m.width)) + "\n\n")

	switch {
	case m.done:
		b.WriteString(formatter.Dim("done") + "\n")
	case m.stopping:
		b.WriteString(m.spinner.View() + " pausing after the stage in flight...\n")
	case m.chapter != "":
		fmt.Fprintf(&b, "%s %s · %s\n", m.spinner.View(), formatter.Bold(m.chapter), refine.Label(m.stage))
	default:
		b.WriteString(m.spinner.View() + " starting...\n")
	}

	if tail := lastLines(m.tail.String(), tailLines); tail != "" {
		b.WriteString(lipgloss.NewStyle().
			Foreground(formatter.ColorText).
			PaddingLeft(2).
			Width(max(m.width-4, 20)).
			Render(tail) + "\n")
	}

	if len(m.log) > 0 {
		b.WriteString("\n" + strings.Join(m.log, "\n") + "\n")
	}

	if !m.done {
		b.WriteString("\n" + formatter.Dim(m.keys.Quit.Help().Key+" "+m.keys.Quit.Help().Desc) + "\n")
	}
	return b.String()
}

func progressWidth(termWidth int) int {
	return min(max(termWidth-20, 10), 50)
}

func lastLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// ── Runners ──────────────────────────────────────────────────────────────────

// runWatched drives Run under a bubbletea program. Quitting the view
// cancels the run, which pauses the pipeline.
func runWatched(ctx context.Context, cmd *cobra.Command, app *App, id string, opts service.RunOptions) (*domain.RefinementPipeline, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newRunView(id, cancel)
	prog := tea.NewProgram(m,
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)

	opts.OnEvent = func(ev service.RunEvent) { prog.Send(runEventMsg{ev: ev}) }
	opts.OnChunk = func(taskID, text string) { prog.Send(chunkMsg{taskID: taskID, text: text}) }

	results := make(chan runDoneMsg, 1)
	go func() {
		p, err := app.Pipelines.Run(ctx, id, opts)
		res := runDoneMsg{pipeline: p, err: err}
		results <- res
		prog.Send(res)
	}()

	_, viewErr := prog.Run()
	cancel()
	res := <-results
	if res.err == nil && viewErr != nil {
		return res.pipeline, fmt.Errorf("live view: %w", viewErr)
	}
	return res.pipeline, res.err
}

// runPlain drives Run writing streamed text and one line per transition.
func runPlain(ctx context.Context, w io.Writer, app *App, id string, opts service.RunOptions) (*domain.RefinementPipeline, error) {
	midLine := false
	endLine := func() {
		if midLine {
			fmt.Fprintln(w)
			midLine = false
		}
	}

	opts.OnChunk = func(_, text string) {
		if text == "" {
			return
		}
		fmt.Fprint(w, text)
		midLine = !strings.HasSuffix(text, "\n")
	}
	opts.OnEvent = func(ev service.RunEvent) {
		endLine()
		switch ev.Kind {
		case service.EventStageStarted:
			fmt.Fprintf(w, "▸ %s · %s\n", ev.ChapterTitle, refine.Label(ev.Stage))
		case service.EventStageCompleted:
			fmt.Fprintf(w, "✓ %s · %s  [%d/%d]\n", ev.ChapterTitle, refine.Label(ev.Stage), ev.Progress.Completed, ev.Progress.Total)
		case service.EventTaskFailed:
			fmt.Fprintf(w, "✗ %s · %s: %v\n", ev.ChapterTitle, refine.Label(ev.Stage), ev.Err)
		case service.EventResultDropped:
			fmt.Fprintf(w, "  dropped %s · %s (pipeline %s)\n", ev.ChapterTitle, refine.Label(ev.Stage), ev.Status)
		case service.EventChapterScored:
			fmt.Fprintf(w, "  scored %s: %d alert(s)\n", ev.ChapterTitle, len(ev.Alerts))
		case service.EventScoreFailed:
			fmt.Fprintf(w, "  scoring %s failed: %v\n", ev.ChapterTitle, ev.Err)
		case service.EventPipelineDone:
			fmt.Fprintf(w, "Pipeline %s\n", ev.Status)
		}
	}

	p, err := app.Pipelines.Run(ctx, id, opts)
	endLine()
	return p, err
}
