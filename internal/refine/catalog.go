package refine

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/alexanderramin/inkwell/internal/domain"
)

// StageInfo describes one catalog entry.
type StageInfo struct {
	Stage       domain.RefinementStage
	Label       string
	Description string
	tmpl        *template.Template
}

// PromptConfig carries optional context substituted into stage templates.
type PromptConfig struct {
	Genre    string `yaml:"genre"`
	Style    string `yaml:"style"`
	Audience string `yaml:"audience"`
	Extra    string `yaml:"extra"`
}

type promptData struct {
	PromptConfig
	Content string
}

const promptFooter = `{{if .Genre}}
Genre: {{.Genre}}{{end}}{{if .Style}}
Style guide: {{.Style}}{{end}}{{if .Audience}}
Target readers: {{.Audience}}{{end}}{{if .Extra}}
Additional instructions: {{.Extra}}{{end}}

Return only the revised chapter text, with no commentary.

Chapter:
{{.Content}}`

var catalog = map[domain.RefinementStage]StageInfo{
	domain.StageRemoveAIFlavor: newStageInfo(domain.StageRemoveAIFlavor,
		"Remove AI flavor",
		"Strip formulaic phrasing, hedging and stock transitions.",
		`Rewrite the chapter below so it reads as if a human novelist wrote it.
Remove formulaic phrasing, stacked adjectives, stock transitions and summary
sentences that tell the reader what they just saw. Keep every plot event,
line of dialogue and character beat.`),
	domain.StageEnhanceTension: newStageInfo(domain.StageEnhanceTension,
		"Enhance tension",
		"Sharpen conflict, stakes and chapter-end hooks.",
		`Revise the chapter below to raise narrative tension. Sharpen conflict
inside scenes, make the stakes concrete, trim slack passages and end on a
hook that pulls the reader into the next chapter. Do not add new plot events.`),
	domain.StageImproveCharacter: newStageInfo(domain.StageImproveCharacter,
		"Improve characterization",
		"Give characters distinct voices, motives and reactions.",
		`Revise the chapter below to deepen characterization. Give each speaking
character a distinct voice, show motives through action and reaction rather
than exposition, and keep behavior consistent with what the chapter establishes.`),
	domain.StageAddTechniques: newStageInfo(domain.StageAddTechniques,
		"Add techniques",
		"Layer in foreshadowing, sensory detail and rhythm.",
		`Polish the chapter below with deliberate craft techniques: foreshadowing,
concrete sensory detail, varied sentence rhythm and a pay-off moment for the
reader. Keep the chapter's length within ten percent of the original.`),
}

func newStageInfo(stage domain.RefinementStage, label, desc, body string) StageInfo {
	src := strings.TrimSpace(body) + "\n" + promptFooter
	return StageInfo{
		Stage:       stage,
		Label:       label,
		Description: desc,
		tmpl:        template.Must(template.New(string(stage)).Parse(src)),
	}
}

// Lookup returns the catalog entry for stage.
func Lookup(stage domain.RefinementStage) (StageInfo, error) {
	info, ok := catalog[stage]
	if !ok {
		return StageInfo{}, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	return info, nil
}

// Label returns the human label for stage, falling back to the identifier.
func Label(stage domain.RefinementStage) string {
	if info, ok := catalog[stage]; ok {
		return info.Label
	}
	return string(stage)
}

// Catalog returns every entry in default pipeline order.
func Catalog() []StageInfo {
	stages := domain.DefaultStages()
	out := make([]StageInfo, 0, len(stages))
	for _, s := range stages {
		out = append(out, catalog[s])
	}
	return out
}

// BuildStagePrompt substitutes content and cfg into the stage template.
func BuildStagePrompt(stage domain.RefinementStage, content string, cfg PromptConfig) (string, error) {
	info, err := Lookup(stage)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := info.tmpl.Execute(&b, promptData{PromptConfig: cfg, Content: content}); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", stage, err)
	}
	return b.String(), nil
}
