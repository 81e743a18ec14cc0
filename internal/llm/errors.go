package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrOllamaUnavailable indicates the Ollama server is unreachable.
	ErrOllamaUnavailable = errors.New("ollama server unavailable")

	// ErrTimeout indicates a completion call exceeded its task timeout.
	ErrTimeout = errors.New("llm request timed out")

	// ErrInvalidOutput indicates a response could not be parsed into the
	// expected structure.
	ErrInvalidOutput = errors.New("invalid llm output format")

	// ErrRetryExhausted indicates every attempt failed.
	ErrRetryExhausted = errors.New("llm retry attempts exhausted")

	// ErrDisabled indicates the backend is switched off in configuration.
	ErrDisabled = errors.New("llm backend disabled")
)

// ErrorCode is the short, stable label logged for a failed call.
type ErrorCode string

const (
	CodeNone          ErrorCode = ""
	CodeCancelled     ErrorCode = "CANCELLED"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeUnavailable   ErrorCode = "UNAVAILABLE"
	CodeDisabled      ErrorCode = "DISABLED"
	CodeInvalidOutput ErrorCode = "INVALID_OUTPUT"
	CodeUnknown       ErrorCode = "UNKNOWN"
)

// CodeOf maps err onto an ErrorCode.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrOllamaUnavailable):
		return CodeUnavailable
	case errors.Is(err, ErrDisabled):
		return CodeDisabled
	case errors.Is(err, ErrInvalidOutput):
		return CodeInvalidOutput
	default:
		return CodeUnknown
	}
}

// classify maps the last attempt error onto the package sentinels. Caller
// cancellation is returned as the context error itself.
func classify(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("llm call aborted: %w", ctx.Err())
	case errors.Is(err, ErrTimeout):
		return ErrTimeout
	case isConnectionError(err):
		return ErrOllamaUnavailable
	default:
		return fmt.Errorf("%w: %v", ErrRetryExhausted, err)
	}
}

func isConnectionError(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
