package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint string) LLMConfig {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = endpoint
	return cfg
}

func shortTimeout(cfg LLMConfig, task TaskType, ms int) LLMConfig {
	tc := cfg.Tasks[task]
	tc.TimeoutMs = ms
	cfg.Tasks[task] = tc
	return cfg
}

func writeFrames(w http.ResponseWriter, frames ...ollamaResponse) {
	for _, f := range frames {
		data, _ := json.Marshal(f)
		fmt.Fprintf(w, "%s\n", data)
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
	}
}

func TestOllamaClient_Generate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, "grade strictly", req.System)
		assert.Equal(t, "chapter text", req.Prompt)
		assert.Equal(t, 0.1, req.Options.Temperature)

		json.NewEncoder(w).Encode(ollamaResponse{Model: "llama3.2", Response: `{"overall":70}`, Done: true})
	}))
	defer srv.Close()

	client := NewOllamaClient(testConfig(srv.URL), NoopObserver{})
	resp, err := client.Generate(context.Background(), GenerateRequest{
		Task:         TaskScore,
		SystemPrompt: "grade strictly",
		UserPrompt:   "chapter text",
	})

	require.NoError(t, err)
	assert.Equal(t, `{"overall":70}`, resp.Text)
	assert.Equal(t, "llama3.2", resp.Model)
}

func TestOllamaClient_Stream_DeliversChunksInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		writeFrames(w,
			ollamaResponse{Model: "llama3.2", Response: "The rain "},
			ollamaResponse{Model: "llama3.2", Response: "fell "},
			ollamaResponse{Model: "llama3.2", Response: "hard."},
			ollamaResponse{Model: "llama3.2", Done: true},
		)
	}))
	defer srv.Close()

	var chunks []string
	client := NewOllamaClient(testConfig(srv.URL), NoopObserver{})
	resp, err := client.Stream(context.Background(), GenerateRequest{Task: TaskRefine, UserPrompt: "x"}, func(s string) {
		chunks = append(chunks, s)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"The rain ", "fell ", "hard."}, chunks)
	assert.Equal(t, "The rain fell hard.", resp.Text)
}

func TestOllamaClient_Stream_ErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, ollamaResponse{Error: "model not found"})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 0
	client := NewOllamaClient(cfg, NoopObserver{})
	_, err := client.Stream(context.Background(), GenerateRequest{Task: TaskRefine}, nil)

	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaClient_Stream_TruncatedNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		writeFrames(w, ollamaResponse{Response: "partial"})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 2
	client := NewOllamaClient(cfg, NoopObserver{})
	_, err := client.Stream(context.Background(), GenerateRequest{Task: TaskRefine}, func(string) {})

	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestOllamaClient_Stream_CancelledByCaller(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	client := NewOllamaClient(testConfig(srv.URL), NoopObserver{})
	_, err := client.Stream(ctx, GenerateRequest{Task: TaskRefine}, func(string) {})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestOllamaClient_Generate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := shortTimeout(testConfig(srv.URL), TaskScore, 50)
	cfg.MaxRetries = 0
	client := NewOllamaClient(cfg, NoopObserver{})
	_, err := client.Generate(context.Background(), GenerateRequest{Task: TaskScore})

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestOllamaClient_Generate_RetryAfterTimeout(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			time.Sleep(150 * time.Millisecond)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Model: "llama3.2", Response: "ok", Done: true})
	}))
	defer srv.Close()

	cfg := shortTimeout(testConfig(srv.URL), TaskScore, 50)
	cfg.MaxRetries = 1
	client := NewOllamaClient(cfg, NoopObserver{})
	resp, err := client.Generate(context.Background(), GenerateRequest{Task: TaskScore})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestOllamaClient_Generate_Unavailable(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.MaxRetries = 0
	client := NewOllamaClient(cfg, NoopObserver{})
	_, err := client.Generate(context.Background(), GenerateRequest{Task: TaskScore})

	assert.ErrorIs(t, err, ErrOllamaUnavailable)
}

func TestOllamaClient_Generate_RetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ollamaResponse{Model: "llama3.2", Response: "ok", Done: true})
	}))
	defer srv.Close()

	client := NewOllamaClient(testConfig(srv.URL), NoopObserver{})
	resp, err := client.Generate(context.Background(), GenerateRequest{Task: TaskScore})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestOllamaClient_Generate_ServerErrorExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 0
	client := NewOllamaClient(cfg, NoopObserver{})
	_, err := client.Generate(context.Background(), GenerateRequest{Task: TaskScore})

	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Contains(t, err.Error(), "status 400")
}

func TestOllamaClient_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
	}))
	defer srv.Close()

	assert.True(t, NewOllamaClient(testConfig(srv.URL), nil).Available(context.Background()))
	assert.False(t, NewOllamaClient(testConfig("http://127.0.0.1:1"), nil).Available(context.Background()))
}

func TestOllamaClient_ObserverEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, ollamaResponse{Response: "a"}, ollamaResponse{Response: "b"}, ollamaResponse{Done: true})
	}))
	defer srv.Close()

	var captured LLMCallEvent
	client := NewOllamaClient(testConfig(srv.URL), ObserverFunc(func(e LLMCallEvent) { captured = e }))
	resp, err := client.Stream(context.Background(), GenerateRequest{
		Task:         TaskRefine,
		SystemPrompt: "editor",
		UserPrompt:   "chapter",
	}, func(string) {})

	require.NoError(t, err)
	assert.Equal(t, TaskRefine, captured.Task)
	assert.True(t, captured.OK())
	assert.Equal(t, 1, captured.Attempts)
	assert.Equal(t, 2, captured.Chunks)
	assert.Equal(t, 13, captured.PromptChars)
	assert.Equal(t, len(resp.Text), captured.OutputChars)
}

func TestOllamaClient_ObserverTimeoutErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := shortTimeout(testConfig(srv.URL), TaskScore, 50)
	cfg.MaxRetries = 0
	var captured LLMCallEvent
	client := NewOllamaClient(cfg, ObserverFunc(func(e LLMCallEvent) { captured = e }))

	_, err := client.Generate(context.Background(), GenerateRequest{Task: TaskScore})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, captured.OK())
	assert.Equal(t, CodeTimeout, captured.Code)
	assert.Equal(t, 1, captured.Attempts)
}

func TestOllamaClient_ObserverCountsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 2
	var captured LLMCallEvent
	client := NewOllamaClient(cfg, ObserverFunc(func(e LLMCallEvent) { captured = e }))

	_, err := client.Generate(context.Background(), GenerateRequest{Task: TaskScore})

	require.ErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, 3, captured.Attempts)
	assert.Equal(t, CodeUnknown, captured.Code)
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{nil, CodeNone},
		{fmt.Errorf("llm call aborted: %w", context.Canceled), CodeCancelled},
		{context.DeadlineExceeded, CodeTimeout},
		{ErrOllamaUnavailable, CodeUnavailable},
		{ErrDisabled, CodeDisabled},
		{fmt.Errorf("%w: no JSON", ErrInvalidOutput), CodeInvalidOutput},
		{ErrRetryExhausted, CodeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeOf(tt.err), "%v", tt.err)
	}
}

func TestLogObserver_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	obs := NewLogObserver(logger)

	obs.OnCallComplete(LLMCallEvent{Task: TaskRefine, Model: "m", Attempts: 1, OutputChars: 40})
	obs.OnCallComplete(LLMCallEvent{Task: TaskScore, Model: "m", Attempts: 3, Code: CodeTimeout})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "level=DEBUG msg=llm_call task=refine model=m latency_ms=0 attempts=1 chunks=0 prompt_chars=0 output_chars=40", lines[0])
	assert.Equal(t, "level=WARN msg=llm_call task=score model=m latency_ms=0 attempts=3 chunks=0 prompt_chars=0 code=TIMEOUT", lines[1])
}

func TestNewClient_Disabled(t *testing.T) {
	client := NewClient(DefaultConfig(), nil)
	_, err := client.Stream(context.Background(), GenerateRequest{Task: TaskRefine}, nil)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, client.Available(context.Background()))
}
