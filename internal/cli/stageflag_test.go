package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/refine"
)

func TestStageListValue_ParsesCommaList(t *testing.T) {
	var stages []domain.RefinementStage
	v := newStageListValue(&stages)

	require.NoError(t, v.Set(" enhance-tension , remove-ai-flavor,"))
	assert.Equal(t, []domain.RefinementStage{domain.StageEnhanceTension, domain.StageRemoveAIFlavor}, stages)
	assert.Equal(t, "enhance-tension,remove-ai-flavor", v.String())
	assert.Equal(t, "stages", v.Type())
}

func TestStageListValue_RejectsUnknownAndDuplicates(t *testing.T) {
	var stages []domain.RefinementStage
	v := newStageListValue(&stages)

	assert.ErrorIs(t, v.Set("remove-ai-flavor,sparkle"), refine.ErrUnknownStage)
	assert.ErrorIs(t, v.Set("add-techniques,add-techniques"), refine.ErrInvalidStages)
	assert.ErrorIs(t, v.Set(""), refine.ErrInvalidStages)
	assert.Nil(t, stages, "a rejected value leaves the target untouched")
}
