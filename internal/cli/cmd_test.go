package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/llm"
	"github.com/alexanderramin/inkwell/internal/repository"
	"github.com/alexanderramin/inkwell/internal/service"
	"github.com/alexanderramin/inkwell/internal/testutil"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string { return ansi.ReplaceAllString(s, "") }

// countingLLM answers every stage with "refined N".
type countingLLM struct {
	mu    sync.Mutex
	calls int
	fail  func(call int) error
}

func (c *countingLLM) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return c.Stream(ctx, req, nil)
}

func (c *countingLLM) Stream(_ context.Context, _ llm.GenerateRequest, onChunk func(string)) (*llm.GenerateResponse, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.mu.Unlock()
	if c.fail != nil {
		if err := c.fail(call); err != nil {
			return nil, err
		}
	}
	text := fmt.Sprintf("refined %d", call)
	if onChunk != nil {
		onChunk(text)
	}
	return &llm.GenerateResponse{Text: text, Model: "fake"}, nil
}

func (c *countingLLM) Available(context.Context) bool { return true }

// testApp wires a full App backed by an in-memory DB for CLI integration tests.
func testApp(t *testing.T) (*App, *countingLLM) {
	t.Helper()
	database := testutil.NewTestDB(t)
	client := &countingLLM{}

	q := service.NewQualityService(
		repository.NewSQLiteMetricsRepo(database),
		repository.NewSQLiteThresholdsRepo(database),
		nil,
	)
	r := service.NewRefineService(
		repository.NewSQLitePipelineRepo(database),
		testutil.NewTestUoW(database),
		client,
		q,
		nil,
	)

	return &App{
		Pipelines:  r,
		Quality:    q,
		Stages:     domain.DefaultStages(),
		LLMEnabled: true,
	}, client
}

// executeCmd runs a cobra command and captures stdout/stderr.
func executeCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return stripANSI(buf.String()), err
}

// writeChapters creates n markdown chapters in a temp directory.
func writeChapters(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 1; i <= n; i++ {
		body := fmt.Sprintf("# Chapter %d\n\nThe rain kept falling on page %d.\n", i, i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%02d.md", i)), []byte(body), 0o644))
	}
	return dir
}

// seedPipeline creates a pipeline through the service and returns its id.
func seedPipeline(t *testing.T, app *App, chapters int, stages ...domain.RefinementStage) string {
	t.Helper()
	if len(stages) == 0 {
		stages = []domain.RefinementStage{domain.StageRemoveAIFlavor}
	}
	p, err := app.Pipelines.Create(context.Background(), testutil.NewTestChapters(chapters), stages, "")
	require.NoError(t, err)
	return p.ID
}

// ── Root and stages ──────────────────────────────────────────────────────────

func TestRootCmd_NoArgs_ShowsHelp(t *testing.T) {
	app, _ := testApp(t)
	out, err := executeCmd(t, app)
	require.NoError(t, err)
	assert.Contains(t, out, "pipeline")
	assert.Contains(t, out, "quality")
}

func TestStagesCmd_ListsCatalogInOrder(t *testing.T) {
	app, _ := testApp(t)
	out, err := executeCmd(t, app, "stages")
	require.NoError(t, err)

	prev := -1
	for _, s := range domain.DefaultStages() {
		idx := strings.Index(out, string(s))
		require.GreaterOrEqual(t, idx, 0, "missing %s", s)
		assert.Greater(t, idx, prev)
		prev = idx
	}
}

func TestMCPCmd_NotConfigured(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "mcp")
	require.Error(t, err)
}

// ── pipeline create / list / show ────────────────────────────────────────────

func TestPipelineCreate_FromDir(t *testing.T) {
	app, _ := testApp(t)
	dir := writeChapters(t, 3)

	out, err := executeCmd(t, app, "pipeline", "create", "--dir", dir, "--stages", "remove-ai-flavor,add-techniques")
	require.NoError(t, err)
	assert.Contains(t, out, "with 3 chapters and 2 stages")

	list, err := app.Pipelines.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	p := list[0]
	assert.Equal(t, dir, p.Source)
	assert.Equal(t, []domain.RefinementStage{domain.StageRemoveAIFlavor, domain.StageAddTechniques}, p.Stages)
	assert.Equal(t, "Chapter 1", p.Tasks[0].ChapterTitle)
	assert.Equal(t, "01", p.Tasks[0].ChapterID)
}

func TestPipelineCreate_UsesConfiguredStages(t *testing.T) {
	app, _ := testApp(t)
	app.Stages = []domain.RefinementStage{domain.StageEnhanceTension}

	_, err := executeCmd(t, app, "pipeline", "create", "--dir", writeChapters(t, 1))
	require.NoError(t, err)

	list, err := app.Pipelines.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []domain.RefinementStage{domain.StageEnhanceTension}, list[0].Stages)
}

func TestPipelineCreate_FromManifest(t *testing.T) {
	app, _ := testApp(t)
	dir := t.TempDir()
	manifest := filepath.Join(dir, "book.json")
	body, err := json.Marshal(map[string]any{
		"chapters": []map[string]string{
			{"id": "prologue", "title": "Prologue", "content": "It began at dawn."},
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(manifest, body, 0o644))

	out, err := executeCmd(t, app, "pipeline", "create", "--manifest", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "with 1 chapters")
}

func TestPipelineCreate_RequiresExactlyOneSource(t *testing.T) {
	app, _ := testApp(t)

	_, err := executeCmd(t, app, "pipeline", "create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --dir or --manifest")

	_, err = executeCmd(t, app, "pipeline", "create", "--dir", "a", "--manifest", "b")
	require.Error(t, err)
}

func TestPipelineCreate_UnknownStage(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "pipeline", "create", "--dir", writeChapters(t, 1), "--stages", "make-it-pop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "make-it-pop")
}

func TestPipelineList_FiltersByStatus(t *testing.T) {
	app, _ := testApp(t)
	idle := seedPipeline(t, app, 1)
	done := seedPipeline(t, app, 1)
	_, err := app.Pipelines.Run(context.Background(), done, service.RunOptions{OnError: service.ErrorPolicyContinue})
	require.NoError(t, err)

	out, err := executeCmd(t, app, "pipeline", "list", "--status", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, done[:8])
	assert.NotContains(t, out, idle[:8])
}

func TestPipelineList_InvalidStatus(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "pipeline", "list", "--status", "finished")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestPipelineShow_AcceptsPrefix(t *testing.T) {
	app, _ := testApp(t)
	id := seedPipeline(t, app, 2)

	out, err := executeCmd(t, app, "pipeline", "show", id[:8])
	require.NoError(t, err)
	assert.Contains(t, out, "Chapter 1")
	assert.Contains(t, out, "Chapter 2")
}

func TestPipelineShow_UnknownID(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "pipeline", "show", "deadbeef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline not found")
}

func TestPipelineShow_Latest(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "pipeline", "show", "latest")
	require.EqualError(t, err, "no pipelines yet")

	seedPipeline(t, app, 1)
	out, err := executeCmd(t, app, "pipeline", "show", "latest")
	require.NoError(t, err)
	assert.Contains(t, out, "Chapter 1")
}

// ── pipeline run ─────────────────────────────────────────────────────────────

func TestPipelineRun_RequiresOnError(t *testing.T) {
	app, _ := testApp(t)
	id := seedPipeline(t, app, 1)

	_, err := executeCmd(t, app, "pipeline", "run", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "on-error")
}

func TestPipelineRun_RejectsUnknownPolicy(t *testing.T) {
	app, _ := testApp(t)
	id := seedPipeline(t, app, 1)

	_, err := executeCmd(t, app, "pipeline", "run", id, "--on-error", "ignore")
	require.ErrorIs(t, err, service.ErrErrorPolicyUnset)
}

func TestPipelineRun_LLMDisabled(t *testing.T) {
	app, client := testApp(t)
	app.LLMEnabled = false
	id := seedPipeline(t, app, 1)

	_, err := executeCmd(t, app, "pipeline", "run", id, "--on-error", "halt")
	require.ErrorIs(t, err, errLLMDisabled)
	assert.Zero(t, client.calls)
}

func TestPipelineRun_PlainOutput(t *testing.T) {
	app, client := testApp(t)
	id := seedPipeline(t, app, 2, domain.StageRemoveAIFlavor, domain.StageEnhanceTension)

	out, err := executeCmd(t, app, "pipeline", "run", id, "--on-error", "continue")
	require.NoError(t, err)
	assert.Equal(t, 4, client.calls)
	assert.Contains(t, out, "▸ Chapter 1")
	assert.Contains(t, out, "refined 1")
	assert.Contains(t, out, "[4/4]")
	assert.Contains(t, out, "Pipeline completed")

	p, err := app.Pipelines.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineCompleted, p.Status)
}

func TestPipelineRun_HaltReportsFailure(t *testing.T) {
	app, client := testApp(t)
	client.fail = func(call int) error {
		if call == 1 {
			return llm.ErrInvalidOutput
		}
		return nil
	}
	id := seedPipeline(t, app, 2)

	out, err := executeCmd(t, app, "pipeline", "run", id, "--on-error", "halt")
	require.NoError(t, err)
	assert.Contains(t, out, "✗ Chapter 1")
	assert.Contains(t, out, "Failed")
	assert.Equal(t, 1, client.calls)
}

func TestPipelineResume_ContinuesPausedPipeline(t *testing.T) {
	app, client := testApp(t)
	id := seedPipeline(t, app, 1)
	ctx := context.Background()

	// Cancelling during the first stage leaves the pipeline paused.
	cancelled, cancel := context.WithCancel(ctx)
	defer cancel()
	client.fail = func(int) error {
		cancel()
		return context.Canceled
	}
	_, err := app.Pipelines.Run(cancelled, id, service.RunOptions{OnError: service.ErrorPolicyContinue})
	require.ErrorIs(t, err, context.Canceled)
	p, err := app.Pipelines.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PipelinePaused, p.Status)

	client.fail = nil
	_, err = executeCmd(t, app, "pipeline", "resume", id, "--on-error", "continue")
	require.NoError(t, err)

	p, err = app.Pipelines.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineCompleted, p.Status)
}

// ── pipeline stop / retry / remove ───────────────────────────────────────────

func TestPipelineStop_RequiresYesWithoutTerminal(t *testing.T) {
	app, _ := testApp(t)
	id := seedPipeline(t, app, 1)

	_, err := executeCmd(t, app, "pipeline", "stop", id)
	require.ErrorIs(t, err, errConfirmRequired)

	out, err := executeCmd(t, app, "pipeline", "stop", id, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped pipeline")
}

func TestPipelineStop_DeclinedPromptLeavesPipeline(t *testing.T) {
	app, _ := testApp(t)
	app.IsInteractive = func() bool { return true }
	var asked string
	app.Confirm = func(title string) (bool, error) {
		asked = title
		return false, nil
	}
	id := seedPipeline(t, app, 1)

	_, err := executeCmd(t, app, "pipeline", "stop", id)
	require.NoError(t, err)
	assert.Contains(t, asked, "cannot be resumed")

	p, err := app.Pipelines.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineIdle, p.Status)
}

func TestPipelineRetry_NothingFailed(t *testing.T) {
	app, _ := testApp(t)
	id := seedPipeline(t, app, 1)

	out, err := executeCmd(t, app, "pipeline", "retry", id)
	require.NoError(t, err)
	assert.Contains(t, out, "No failed chapters")
}

func TestPipelineRetry_ResetsFailedChapters(t *testing.T) {
	app, client := testApp(t)
	client.fail = func(int) error { return llm.ErrTimeout }
	id := seedPipeline(t, app, 2)
	_, err := app.Pipelines.Run(context.Background(), id, service.RunOptions{OnError: service.ErrorPolicyContinue})
	require.NoError(t, err)

	out, err := executeCmd(t, app, "pipeline", "retry", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Reset 2 failed chapter(s)")
}

func TestPipelineRemove_WithYes(t *testing.T) {
	app, _ := testApp(t)
	id := seedPipeline(t, app, 1)

	_, err := executeCmd(t, app, "pipeline", "remove", id, "-y")
	require.NoError(t, err)

	_, err = app.Pipelines.Get(context.Background(), id)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

// ── pipeline report / export ─────────────────────────────────────────────────

func TestPipelineReport_PrintsMarkdown(t *testing.T) {
	app, _ := testApp(t)
	id := seedPipeline(t, app, 1)

	out, err := executeCmd(t, app, "pipeline", "report", id)
	require.NoError(t, err)
	assert.Contains(t, out, "# Refinement Pipeline Report")
}

func TestPipelineExport_CSVToFile(t *testing.T) {
	app, _ := testApp(t)
	id := seedPipeline(t, app, 2)
	_, err := app.Pipelines.Run(context.Background(), id, service.RunOptions{OnError: service.ErrorPolicyContinue})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.csv")
	out, err := executeCmd(t, app, "pipeline", "export", id, "--format", "csv", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 chapter(s)")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "chapter_id,chapter_title"))
	assert.Contains(t, string(data), "refined 2")
}

func TestPipelineExport_UnknownFormat(t *testing.T) {
	app, _ := testApp(t)
	id := seedPipeline(t, app, 1)

	_, err := executeCmd(t, app, "pipeline", "export", id, "--format", "xml")
	require.ErrorIs(t, err, service.ErrUnknownExportFormat)
}

// ── quality ──────────────────────────────────────────────────────────────────

func recordArgs(chapter int, overall, aiFlavor string) []string {
	return []string{
		"quality", "record",
		"--chapter", fmt.Sprint(chapter),
		"--overall", overall,
		"--ai-flavor", aiFlavor,
		"--cool-point", "0.6",
		"--pacing", "75",
		"--consistency", "85",
		"--repetition", "5",
	}
}

func TestQualityRecord_ShowsRaisedAlerts(t *testing.T) {
	app, _ := testApp(t)

	out, err := executeCmd(t, app, recordArgs(1, "80", "75")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded chapter 1")
	assert.Contains(t, out, "Machine-like prose")
}

func TestQualityRecord_RequiresEveryScore(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "quality", "record", "--chapter", "1", "--overall", "80")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestQualityScore_LLMDisabled(t *testing.T) {
	app, _ := testApp(t)
	app.LLMEnabled = false
	_, err := executeCmd(t, app, "quality", "score", "--chapter", "1", "--file", "ch.md")
	require.ErrorIs(t, err, errLLMDisabled)
}

func TestQualityAlerts_FiltersAndActive(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, recordArgs(1, "80", "75")...)
	require.NoError(t, err)
	_, err = executeCmd(t, app, recordArgs(2, "80", "10")...)
	require.NoError(t, err)

	out, err := executeCmd(t, app, "quality", "alerts", "--type", "ai-flavor")
	require.NoError(t, err)
	assert.Contains(t, out, "Machine-like prose")

	out, err = executeCmd(t, app, "quality", "alerts", "--active")
	require.NoError(t, err)
	assert.Contains(t, out, "No alerts.")
}

func TestQualityAlerts_InvalidType(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "quality", "alerts", "--type", "boredom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid alert type")
}

func TestQualityStatsAndReport(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, recordArgs(1, "80", "75")...)
	require.NoError(t, err)

	out, err := executeCmd(t, app, "quality", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded 1")

	out, err = executeCmd(t, app, "quality", "report")
	require.NoError(t, err)
	assert.Contains(t, out, "# Quality Alert Report")
}

func TestQualityHistory_ListsSnapshots(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, recordArgs(4, "63", "10")...)
	require.NoError(t, err)

	out, err := executeCmd(t, app, "quality", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "OVERALL")
	assert.Contains(t, out, "63")
}

func TestQualityThresholds_ShowDefaults(t *testing.T) {
	app, _ := testApp(t)
	out, err := executeCmd(t, app, "quality", "thresholds")
	require.NoError(t, err)
	assert.Contains(t, out, "overall < 60 for 3 chapters")
}

func TestQualityThresholds_UpdatePartially(t *testing.T) {
	app, _ := testApp(t)

	out, err := executeCmd(t, app, "quality", "thresholds", "--low-score", "70", "--disable", "pacing")
	require.NoError(t, err)
	assert.Contains(t, out, "overall < 70 for 3 chapters")

	th, err := app.Quality.Thresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 70.0, th.LowScoreThreshold)
	assert.Equal(t, 40.0, th.AIFlavorThreshold)
	assert.False(t, th.Enabled(domain.AlertPacing))
}

func TestQualityThresholds_ConflictingToggles(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "quality", "thresholds", "--enable", "pacing", "--disable", "pacing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both enabled and disabled")
}

func TestQualityThresholds_RejectsZeroWindow(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "quality", "thresholds", "--cool-point-window", "0")
	require.ErrorIs(t, err, service.ErrInvalidThresholds)
}

func TestQualityClear_InvalidSince(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "quality", "clear", "--since", "yesterday", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RFC3339")
}

func TestQualityClear_RemovesHistory(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, recordArgs(1, "80", "10")...)
	require.NoError(t, err)

	_, err = executeCmd(t, app, "quality", "clear", "--yes")
	require.NoError(t, err)

	history, err := app.Quality.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
}
