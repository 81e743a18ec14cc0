package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// SchemaValidator checks a decoded value after extraction.
type SchemaValidator[T any] func(T) error

// bareDecimal matches ".5" or "-.5" after a JSON value separator.
var bareDecimal = regexp.MustCompile(`([:,\[]\s*-?)\.(\d)`)

// ExtractJSON decodes the first JSON object in raw model output into T.
// Markdown fences and chatter around the object are ignored.
func ExtractJSON[T any](raw string, validator SchemaValidator[T]) (T, error) {
	var zero T

	text := stripFences(raw)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return zero, fmt.Errorf("%w: no JSON object found in response", ErrInvalidOutput)
	}
	text = bareDecimal.ReplaceAllString(text[start:], "${1}0.${2}")

	var out T
	if err := json.NewDecoder(strings.NewReader(text)).Decode(&out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if validator != nil {
		if err := validator(out); err != nil {
			return zero, fmt.Errorf("%w: validation failed: %v", ErrInvalidOutput, err)
		}
	}
	return out, nil
}

// stripFences drops markdown fence lines (```json, ```) and keeps everything
// between them.
func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
