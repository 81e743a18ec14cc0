package llm

import (
	"os"
	"strconv"
)

// TaskType identifies the kind of completion being requested.
type TaskType string

const (
	// TaskRefine rewrites chapter prose for one refinement stage.
	TaskRefine TaskType = "refine"
	// TaskScore asks the model to grade a chapter and answer in JSON.
	TaskScore TaskType = "score"
)

// TaskConfig holds per-task generation parameters.
type TaskConfig struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
	TimeoutMs   int     `yaml:"timeoutMs"` // overrides the global timeout if > 0
}

// LLMConfig holds all configuration for the completion backend.
type LLMConfig struct {
	Enabled    bool                    `yaml:"enabled"`
	LogCalls   bool                    `yaml:"logCalls"`
	Endpoint   string                  `yaml:"endpoint"`
	Model      string                  `yaml:"model"`
	TimeoutMs  int                     `yaml:"timeoutMs"`
	MaxRetries int                     `yaml:"maxRetries"`
	Tasks      map[TaskType]TaskConfig `yaml:"tasks"`
}

// DefaultConfig returns the built-in settings. The backend is disabled until
// explicitly enabled.
func DefaultConfig() LLMConfig {
	return LLMConfig{
		Endpoint:   "http://localhost:11434",
		Model:      "llama3.2",
		TimeoutMs:  60000,
		MaxRetries: 1,
		Tasks: map[TaskType]TaskConfig{
			TaskRefine: {Temperature: 0.7, MaxTokens: 4096, TimeoutMs: 180000},
			TaskScore:  {Temperature: 0.1, MaxTokens: 512, TimeoutMs: 30000},
		},
	}
}

// LoadConfig reads INKWELL_LLM_* environment variables over the defaults.
func LoadConfig() LLMConfig {
	return ApplyEnv(DefaultConfig())
}

// ApplyEnv overrides cfg with any INKWELL_LLM_* variables that are set and
// valid. Invalid values are ignored.
func ApplyEnv(cfg LLMConfig) LLMConfig {
	cfg.Tasks = cloneTasks(cfg.Tasks)

	if v := os.Getenv("INKWELL_LLM_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}
	if v := os.Getenv("INKWELL_LLM_LOG_CALLS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogCalls = b
		}
	}
	if v := os.Getenv("INKWELL_LLM_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("INKWELL_LLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if n, ok := positiveEnvInt("INKWELL_LLM_TIMEOUT_MS"); ok {
		cfg.TimeoutMs = n
	}
	if v := os.Getenv("INKWELL_LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}

	applyTaskTimeoutEnv(&cfg, TaskRefine, "INKWELL_LLM_REFINE_TIMEOUT_MS")
	applyTaskTimeoutEnv(&cfg, TaskScore, "INKWELL_LLM_SCORE_TIMEOUT_MS")
	return cfg
}

// TaskTimeout returns the effective timeout in milliseconds for task.
func (c LLMConfig) TaskTimeout(task TaskType) int {
	if tc, ok := c.Tasks[task]; ok && tc.TimeoutMs > 0 {
		return tc.TimeoutMs
	}
	return c.TimeoutMs
}

func applyTaskTimeoutEnv(cfg *LLMConfig, task TaskType, envName string) {
	n, ok := positiveEnvInt(envName)
	if !ok {
		return
	}
	tc := cfg.Tasks[task]
	tc.TimeoutMs = n
	cfg.Tasks[task] = tc
}

func positiveEnvInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func cloneTasks(in map[TaskType]TaskConfig) map[TaskType]TaskConfig {
	out := make(map[TaskType]TaskConfig, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
