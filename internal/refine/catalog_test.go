package refine

import (
	"testing"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_CoversDefaultStages(t *testing.T) {
	entries := Catalog()
	require.Len(t, entries, len(domain.DefaultStages()))
	for i, s := range domain.DefaultStages() {
		assert.Equal(t, s, entries[i].Stage)
		assert.NotEmpty(t, entries[i].Label)
		assert.NotEmpty(t, entries[i].Description)
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("polish")
	assert.ErrorIs(t, err, ErrUnknownStage)
	assert.Equal(t, "polish", Label("polish"))
}

func TestBuildStagePrompt_SubstitutesContent(t *testing.T) {
	prompt, err := BuildStagePrompt(domain.StageEnhanceTension, "The door creaked.", PromptConfig{})
	require.NoError(t, err)
	assert.Contains(t, prompt, "narrative tension")
	assert.Contains(t, prompt, "Chapter:\nThe door creaked.")
	assert.NotContains(t, prompt, "Genre:")
}

func TestBuildStagePrompt_IncludesConfig(t *testing.T) {
	prompt, err := BuildStagePrompt(domain.StageRemoveAIFlavor, "text", PromptConfig{
		Genre: "xianxia",
		Style: "short sentences",
		Extra: "keep the rooftop scene",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Genre: xianxia")
	assert.Contains(t, prompt, "Style guide: short sentences")
	assert.Contains(t, prompt, "Additional instructions: keep the rooftop scene")
	assert.NotContains(t, prompt, "Target readers:")
}

func TestBuildStagePrompt_IsPure(t *testing.T) {
	a, err := BuildStagePrompt(domain.StageAddTechniques, "same", PromptConfig{Audience: "teens"})
	require.NoError(t, err)
	b, err := BuildStagePrompt(domain.StageAddTechniques, "same", PromptConfig{Audience: "teens"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildStagePrompt_UnknownStage(t *testing.T) {
	_, err := BuildStagePrompt("polish", "text", PromptConfig{})
	assert.ErrorIs(t, err, ErrUnknownStage)
}
