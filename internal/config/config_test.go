package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/llm"
	"github.com/alexanderramin/inkwell/internal/refine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(content)), 0o644))
	return dir, path
}

func TestLoadFile_DefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFile(filepath.Join(dir, "config.yaml"), dir, false)
	require.NoError(t, err)
	assert.Empty(t, cfg.Path)
	assert.Equal(t, filepath.Join(dir, "inkwell.db"), cfg.DBPath)
	assert.Equal(t, domain.DefaultStages(), cfg.Stages)
	assert.Equal(t, domain.DefaultThresholds(), cfg.Thresholds)
	assert.False(t, cfg.LLM.Enabled)
}

func TestLoadFile_RequiredMissingIsError(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "nope.yaml"), dir, true)
	require.Error(t, err)
}

func TestLoadFile_ParsesYAMLOverDefaults(t *testing.T) {
	dir, path := writeConfig(t, `
db: /tmp/book.db
stages:
  - remove-ai-flavor
  - add-techniques
prompt:
  genre: mystery
  audience: young adult
thresholds:
  lowScoreThreshold: 55
  disabled:
    repetition: true
maxHistory: 40
llm:
  enabled: true
  model: qwen2.5
  tasks:
    refine:
      temperature: 0.5
`)

	cfg, err := LoadFile(path, dir, true)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "/tmp/book.db", cfg.DBPath)
	assert.Equal(t, []domain.RefinementStage{domain.StageRemoveAIFlavor, domain.StageAddTechniques}, cfg.Stages)
	assert.Equal(t, "mystery", cfg.Prompt.Genre)
	assert.Equal(t, "young adult", cfg.Prompt.Audience)

	assert.Equal(t, 55.0, cfg.Thresholds.LowScoreThreshold)
	assert.Equal(t, domain.DefaultThresholds().AIFlavorThreshold, cfg.Thresholds.AIFlavorThreshold)
	assert.False(t, cfg.Thresholds.Enabled(domain.AlertRepetition))
	assert.Equal(t, 40, cfg.MaxHistory)

	assert.True(t, cfg.LLM.Enabled)
	assert.Equal(t, "qwen2.5", cfg.LLM.Model)
	assert.Equal(t, llm.DefaultConfig().Endpoint, cfg.LLM.Endpoint)

	refineTask := cfg.LLM.Tasks[llm.TaskRefine]
	assert.Equal(t, 0.5, refineTask.Temperature)
	assert.Equal(t, llm.DefaultConfig().Tasks[llm.TaskRefine].MaxTokens, refineTask.MaxTokens, "unset task fields keep defaults")
	assert.Contains(t, cfg.LLM.Tasks, llm.TaskScore)
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	dir, path := writeConfig(t, `
db: /tmp/book.db
llm:
  model: qwen2.5
`)
	t.Setenv("INKWELL_DB", "/data/other.db")
	t.Setenv("INKWELL_LLM_MODEL", "mistral")
	t.Setenv("INKWELL_LLM_REFINE_TIMEOUT_MS", "5000")

	cfg, err := LoadFile(path, dir, true)
	require.NoError(t, err)
	assert.Equal(t, "/data/other.db", cfg.DBPath)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, 5000, cfg.LLM.TaskTimeout(llm.TaskRefine))
}

func TestLoadFile_InvalidStages(t *testing.T) {
	dir, path := writeConfig(t, `
stages:
  - remove-ai-flavor
  - remove-ai-flavor
`)

	_, err := LoadFile(path, dir, true)
	require.ErrorIs(t, err, refine.ErrInvalidStages)
}

func TestLoadFile_UnknownStage(t *testing.T) {
	dir, path := writeConfig(t, `
stages: [rewrite-everything]
`)

	_, err := LoadFile(path, dir, true)
	require.ErrorIs(t, err, refine.ErrUnknownStage)
}

func TestLoadFile_BadYAML(t *testing.T) {
	dir, path := writeConfig(t, "stages: [unclosed")

	_, err := LoadFile(path, dir, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing yaml")
}

func TestLoadFile_RejectsNonPositiveHistory(t *testing.T) {
	dir, path := writeConfig(t, "maxHistory: -1")

	_, err := LoadFile(path, dir, true)
	require.Error(t, err)
}

func TestLoad_UsesConfigEnv(t *testing.T) {
	_, path := writeConfig(t, "db: /tmp/from-env.db")
	t.Setenv("INKWELL_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.DBPath)
}

func TestEnsureDir_CreatesParent(t *testing.T) {
	dir := t.TempDir()
	cfg := Default(filepath.Join(dir, "nested", "data"))

	require.NoError(t, cfg.EnsureDir())
	info, err := os.Stat(filepath.Join(dir, "nested", "data"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadFile_LogLevelFromEnv(t *testing.T) {
	t.Setenv("INKWELL_LOG", "warn")
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "none.yaml"), t.TempDir(), false)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	assert.Nil(t, NewLogger(&buf, ""))
	assert.Nil(t, NewLogger(&buf, " OFF "))

	logger := NewLogger(&buf, "warn")
	require.NotNil(t, logger)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")

	assert.True(t, NewLogger(&buf, "1").Enabled(context.Background(), slog.LevelDebug))
}
