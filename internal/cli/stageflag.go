package cli

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/refine"
)

// stageListValue is a comma-separated list of stage ids checked against
// the catalog as it is parsed.
type stageListValue struct {
	stages *[]domain.RefinementStage
}

var _ pflag.Value = (*stageListValue)(nil)

func newStageListValue(p *[]domain.RefinementStage) *stageListValue {
	return &stageListValue{stages: p}
}

func (v *stageListValue) String() string {
	if v.stages == nil {
		return ""
	}
	parts := make([]string, len(*v.stages))
	for i, s := range *v.stages {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func (v *stageListValue) Set(raw string) error {
	var out []domain.RefinementStage
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, domain.RefinementStage(part))
	}
	if err := refine.ValidateStages(out); err != nil {
		return err
	}
	*v.stages = out
	return nil
}

func (v *stageListValue) Type() string { return "stages" }
