package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// GenerateRequest holds the parameters for one completion call.
type GenerateRequest struct {
	Task         TaskType
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64 // nil uses task default
	MaxTokens    *int     // nil uses task default
}

// GenerateResponse holds the final text of a completion call.
type GenerateResponse struct {
	Text      string
	Model     string
	LatencyMs int64
}

// LLMClient provides access to a language model for text generation.
type LLMClient interface {
	// Generate sends a prompt and returns the full response.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Stream sends a prompt and calls onChunk with each partial fragment as
	// it arrives. The returned response holds the concatenated text.
	// Cancelling ctx aborts the call.
	Stream(ctx context.Context, req GenerateRequest, onChunk func(string)) (*GenerateResponse, error)

	// Available checks whether the Ollama server is reachable.
	Available(ctx context.Context) bool
}

type ollamaClient struct {
	cfg      LLMConfig
	http     *http.Client
	observer Observer
}

// NewOllamaClient creates an LLMClient that talks to an Ollama instance.
func NewOllamaClient(cfg LLMConfig, observer Observer) LLMClient {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &ollamaClient{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			},
		},
		observer: observer,
	}
}

// ollamaRequest is the JSON body sent to POST /api/generate.
type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaResponse is one JSON object from /api/generate. Streaming responses
// are newline-delimited sequences of these, the last with Done set.
type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (c *ollamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	return c.call(ctx, req, nil)
}

func (c *ollamaClient) Stream(ctx context.Context, req GenerateRequest, onChunk func(string)) (*GenerateResponse, error) {
	if onChunk == nil {
		onChunk = func(string) {}
	}
	return c.call(ctx, req, onChunk)
}

func (c *ollamaClient) call(ctx context.Context, req GenerateRequest, onChunk func(string)) (*GenerateResponse, error) {
	start := time.Now()
	body := c.buildRequest(req, onChunk != nil)
	timeout := time.Duration(c.cfg.TaskTimeout(req.Task)) * time.Millisecond

	var (
		lastErr error
		chunks  int
	)
	attempts := 1 + c.cfg.MaxRetries
	tried := 0
	for tried < attempts {
		tried++
		attemptCtx, cancel := withOptionalTimeout(ctx, timeout)
		resp, n, err := c.doRequest(attemptCtx, body, onChunk)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()
		chunks += n

		if err == nil {
			latency := time.Since(start).Milliseconds()
			c.observer.OnCallComplete(LLMCallEvent{
				Task:        req.Task,
				Model:       c.cfg.Model,
				LatencyMs:   latency,
				Attempts:    tried,
				Chunks:      chunks,
				PromptChars: len(req.SystemPrompt) + len(req.UserPrompt),
				OutputChars: len(resp.Response),
			})
			return &GenerateResponse{Text: resp.Response, Model: resp.Model, LatencyMs: latency}, nil
		}

		lastErr = err
		if timedOut {
			lastErr = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		// A caller that already saw partial output cannot be replayed to.
		if ctx.Err() != nil || n > 0 {
			break
		}
	}

	finalErr := classify(ctx, lastErr)
	c.observer.OnCallComplete(LLMCallEvent{
		Task:        req.Task,
		Model:       c.cfg.Model,
		LatencyMs:   time.Since(start).Milliseconds(),
		Attempts:    tried,
		Chunks:      chunks,
		PromptChars: len(req.SystemPrompt) + len(req.UserPrompt),
		Code:        CodeOf(finalErr),
	})
	return nil, finalErr
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (c *ollamaClient) buildRequest(req GenerateRequest, stream bool) ollamaRequest {
	taskCfg := c.cfg.Tasks[req.Task]
	temp := taskCfg.Temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	maxTok := taskCfg.MaxTokens
	if req.MaxTokens != nil {
		maxTok = *req.MaxTokens
	}
	return ollamaRequest{
		Model:   c.cfg.Model,
		System:  req.SystemPrompt,
		Prompt:  req.UserPrompt,
		Stream:  stream,
		Options: ollamaOptions{Temperature: temp, NumPredict: maxTok},
	}
}

// doRequest performs one HTTP round trip. It returns the number of chunks
// delivered to onChunk even when it fails part-way.
func (c *ollamaClient) doRequest(ctx context.Context, body ollamaRequest, onChunk func(string)) (*ollamaResponse, int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, 0, fmt.Errorf("ollama returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if onChunk == nil {
		var resp ollamaResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return nil, 0, fmt.Errorf("decoding response: %w", err)
		}
		if resp.Error != "" {
			return nil, 0, fmt.Errorf("ollama error: %s", resp.Error)
		}
		return &resp, 0, nil
	}
	return readStream(httpResp.Body, onChunk)
}

func readStream(r io.Reader, onChunk func(string)) (*ollamaResponse, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		text   strings.Builder
		model  string
		chunks int
	)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var frame ollamaResponse
		if err := json.Unmarshal(line, &frame); err != nil {
			return nil, chunks, fmt.Errorf("decoding stream frame: %w", err)
		}
		if frame.Error != "" {
			return nil, chunks, fmt.Errorf("ollama error: %s", frame.Error)
		}
		if frame.Model != "" {
			model = frame.Model
		}
		if frame.Response != "" {
			text.WriteString(frame.Response)
			onChunk(frame.Response)
			chunks++
		}
		if frame.Done {
			return &ollamaResponse{Model: model, Response: text.String(), Done: true}, chunks, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, chunks, err
	}
	return nil, chunks, errors.New("stream ended before completion")
}

func (c *ollamaClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
