package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/alexanderramin/inkwell/internal/cli"
	"github.com/alexanderramin/inkwell/internal/config"
	"github.com/alexanderramin/inkwell/internal/db"
	"github.com/alexanderramin/inkwell/internal/llm"
	"github.com/alexanderramin/inkwell/internal/mcpserver"
	"github.com/alexanderramin/inkwell/internal/quality"
	"github.com/alexanderramin/inkwell/internal/repository"
	"github.com/alexanderramin/inkwell/internal/scoring"
	"github.com/alexanderramin/inkwell/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDir(); err != nil {
		return err
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Logs go to stderr so they never mix with command output.
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)
	observer := service.NewLogUseCaseObserver(logger)

	var llmObserver llm.Observer = llm.NoopObserver{}
	if cfg.LLM.LogCalls {
		if logger == nil {
			logger = config.NewLogger(os.Stderr, "debug")
		}
		llmObserver = llm.NewLogObserver(logger)
	}
	client := llm.NewClient(cfg.LLM, llmObserver)

	// Without a backend Score reports ErrScorerUnavailable.
	var scorer quality.Scorer
	if cfg.LLM.Enabled {
		scorer = scoring.NewLLMScorer(client)
	}

	qualitySvc := service.NewQualityService(
		repository.NewSQLiteMetricsRepo(database),
		repository.NewSQLiteThresholdsRepo(database),
		scorer,
		service.WithDefaultThresholds(cfg.Thresholds),
		service.WithHistoryLimit(cfg.MaxHistory),
		service.WithAlertLimit(cfg.MaxAlerts),
		service.WithQualityObserver(observer),
	)
	refineSvc := service.NewRefineService(
		repository.NewSQLitePipelineRepo(database),
		db.NewSQLiteUnitOfWork(database),
		client,
		qualitySvc,
		nil,
		observer,
	)

	mcpserver.Version = version
	app := &cli.App{
		Pipelines:  refineSvc,
		Quality:    qualitySvc,
		Stages:     cfg.Stages,
		Prompt:     cfg.Prompt,
		LLMEnabled: cfg.LLM.Enabled,
		IsInteractive: func() bool {
			fd := os.Stdout.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
		Confirm: cli.HuhConfirm,
		ServeMCP: func() error {
			return mcpserver.ServeStdio(mcpserver.New(refineSvc, qualitySvc))
		},
	}

	rootCmd := cli.NewRootCmd(app)
	rootCmd.Version = version
	return rootCmd.Execute()
}
