package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// latestPipeline names the most recently created pipeline.
const latestPipeline = "latest"

// resolvePipelineID turns a command argument into a pipeline id. It takes
// a full id, a unique prefix as printed by list, or "latest".
func resolvePipelineID(ctx context.Context, app *App, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("pipeline ID is required")
	}

	// List is newest first.
	all, err := app.Pipelines.List(ctx, "")
	if err != nil {
		return "", err
	}
	if arg == latestPipeline {
		if len(all) == 0 {
			return "", errors.New("no pipelines yet")
		}
		return all[0].ID, nil
	}

	var found []string
	for _, p := range all {
		switch {
		case p.ID == arg:
			return p.ID, nil
		case strings.HasPrefix(p.ID, arg):
			found = append(found, p.ID)
		}
	}
	if len(found) == 1 {
		return found[0], nil
	}
	if len(found) == 0 {
		return "", fmt.Errorf("pipeline not found: %q", arg)
	}
	return "", fmt.Errorf("pipeline ID prefix %q is ambiguous (%d matches)", arg, len(found))
}
