// Package config loads inkwell settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/llm"
	"github.com/alexanderramin/inkwell/internal/quality"
	"github.com/alexanderramin/inkwell/internal/refine"
)

const (
	configPathEnv = "INKWELL_CONFIG"
	dbPathEnv     = "INKWELL_DB"
	logLevelEnv   = "INKWELL_LOG"

	dirName    = ".inkwell"
	fileName   = "config.yaml"
	dbFileName = "inkwell.db"
)

// Config holds everything the CLI needs to wire services.
type Config struct {
	DBPath     string                   `yaml:"db"`
	Stages     []domain.RefinementStage `yaml:"stages"`
	Prompt     refine.PromptConfig      `yaml:"prompt"`
	Thresholds domain.Thresholds        `yaml:"thresholds"`
	MaxHistory int                      `yaml:"maxHistory"`
	MaxAlerts  int                      `yaml:"maxAlerts"`
	LLM        llm.LLMConfig            `yaml:"llm"`
	// LogLevel enables stderr logging when set. See NewLogger.
	LogLevel string `yaml:"logLevel"`

	// Path is the file the config was read from, empty when none was.
	Path string `yaml:"-"`
}

// Default returns the built-in settings. The database lives under dir.
func Default(dir string) Config {
	return Config{
		DBPath:     filepath.Join(dir, dbFileName),
		Stages:     domain.DefaultStages(),
		Thresholds: domain.DefaultThresholds(),
		MaxHistory: quality.DefaultMaxHistory,
		MaxAlerts:  quality.DefaultMaxAlerts,
		LLM:        llm.DefaultConfig(),
	}
}

// Dir returns ~/.inkwell.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Load reads INKWELL_CONFIG, or ~/.inkwell/config.yaml when that is unset,
// and applies environment overrides. A missing default file is fine; a
// missing INKWELL_CONFIG file is an error.
func Load() (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}
	path, required := os.Getenv(configPathEnv), true
	if path == "" {
		path, required = filepath.Join(dir, fileName), false
	}
	return LoadFile(path, dir, required)
}

// LoadFile is Load with an explicit file and data directory.
func LoadFile(path, dir string, required bool) (Config, error) {
	cfg := Default(dir)

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(raw); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode unmarshals raw over the current values so omitted keys keep their
// defaults. Task entries are merged field by field.
func (c *Config) decode(raw []byte) error {
	defaults := c.LLM.Tasks
	c.LLM.Tasks = nil
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	c.LLM.Tasks = mergeTasks(defaults, c.LLM.Tasks)
	return nil
}

func mergeTasks(defaults, file map[llm.TaskType]llm.TaskConfig) map[llm.TaskType]llm.TaskConfig {
	out := make(map[llm.TaskType]llm.TaskConfig, len(defaults)+len(file))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range file {
		base := out[k]
		if v.Temperature != 0 {
			base.Temperature = v.Temperature
		}
		if v.MaxTokens != 0 {
			base.MaxTokens = v.MaxTokens
		}
		if v.TimeoutMs != 0 {
			base.TimeoutMs = v.TimeoutMs
		}
		out[k] = base
	}
	return out
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dbPathEnv); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.LogLevel = v
	}
	c.LLM = llm.ApplyEnv(c.LLM)
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("config: db path is empty")
	}
	if err := refine.ValidateStages(c.Stages); err != nil {
		return fmt.Errorf("config stages: %w", err)
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("config: maxHistory must be positive, got %d", c.MaxHistory)
	}
	if c.MaxAlerts < 1 {
		return fmt.Errorf("config: maxAlerts must be positive, got %d", c.MaxAlerts)
	}
	if c.Thresholds.LowScoreMinRun < 1 || c.Thresholds.CoolPointWindow < 1 {
		return errors.New("config: thresholds lowScoreMinRun and coolPointWindow must be at least 1")
	}
	return nil
}

// EnsureDir creates the directory holding the database.
func (c Config) EnsureDir() error {
	if err := os.MkdirAll(filepath.Dir(c.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
