package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_DisabledWithTaskTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 180000, cfg.TaskTimeout(TaskRefine))
	assert.Equal(t, 30000, cfg.TaskTimeout(TaskScore))
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("INKWELL_LLM_ENABLED", "true")
	t.Setenv("INKWELL_LLM_ENDPOINT", "http://ollama:11434")
	t.Setenv("INKWELL_LLM_MODEL", "qwen2.5")
	t.Setenv("INKWELL_LLM_TIMEOUT_MS", "9000")
	t.Setenv("INKWELL_LLM_MAX_RETRIES", "0")
	t.Setenv("INKWELL_LLM_REFINE_TIMEOUT_MS", "240000")

	cfg := LoadConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "http://ollama:11434", cfg.Endpoint)
	assert.Equal(t, "qwen2.5", cfg.Model)
	assert.Equal(t, 9000, cfg.TimeoutMs)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 240000, cfg.TaskTimeout(TaskRefine))
	assert.Equal(t, 30000, cfg.TaskTimeout(TaskScore))
}

func TestLoadConfig_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("INKWELL_LLM_ENABLED", "sometimes")
	t.Setenv("INKWELL_LLM_SCORE_TIMEOUT_MS", "not-a-number")
	t.Setenv("INKWELL_LLM_MAX_RETRIES", "-2")

	cfg := LoadConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 30000, cfg.TaskTimeout(TaskScore))
	assert.Equal(t, 1, cfg.MaxRetries)
}

func TestApplyEnv_DoesNotMutateInput(t *testing.T) {
	t.Setenv("INKWELL_LLM_SCORE_TIMEOUT_MS", "1234")
	base := DefaultConfig()

	ApplyEnv(base)

	assert.Equal(t, 30000, base.Tasks[TaskScore].TimeoutMs)
}

func TestTaskTimeout_FallsBackToGlobal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tasks = nil
	assert.Equal(t, 60000, cfg.TaskTimeout(TaskRefine))
}
