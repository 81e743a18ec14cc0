package llm

import (
	"context"
	"log/slog"
)

// LLMCallEvent describes one Generate or Stream call after all retries.
// Code is empty when the call succeeded.
type LLMCallEvent struct {
	Task        TaskType
	Model       string
	LatencyMs   int64
	Attempts    int
	Chunks      int
	PromptChars int
	OutputChars int
	Code        ErrorCode
}

// OK reports whether the call produced a response.
func (e LLMCallEvent) OK() bool { return e.Code == CodeNone }

// Observer receives events about completion calls.
type Observer interface {
	OnCallComplete(event LLMCallEvent)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(LLMCallEvent)

func (f ObserverFunc) OnCallComplete(e LLMCallEvent) { f(e) }

// LogObserver writes one "llm_call" record per call. Failed calls log at
// warn level since the pipeline records them on the task anyway.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates an Observer that logs through logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnCallComplete(e LLMCallEvent) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("task", string(e.Task)),
		slog.String("model", e.Model),
		slog.Int64("latency_ms", e.LatencyMs),
		slog.Int("attempts", e.Attempts),
		slog.Int("chunks", e.Chunks),
		slog.Int("prompt_chars", e.PromptChars),
	}
	if e.OK() {
		attrs = append(attrs, slog.Int("output_chars", e.OutputChars))
	} else {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("code", string(e.Code)))
	}
	o.logger.LogAttrs(context.Background(), level, "llm_call", attrs...)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) OnCallComplete(LLMCallEvent) {}
