package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validManifest() *Manifest {
	return &Manifest{
		Chapters: []ChapterEntry{
			{ID: "c1", Title: "Arrival", Content: "The train was late."},
			{ID: "c2", File: "02-storm.md"},
		},
	}
}

func TestValidateManifest_Valid(t *testing.T) {
	assert.Empty(t, ValidateManifest(validManifest()))
}

func TestValidateManifest_Empty(t *testing.T) {
	errs := ValidateManifest(&Manifest{})
	assert.Len(t, errs, 1)
}

func TestValidateManifest_CollectsEveryError(t *testing.T) {
	m := &Manifest{
		Chapters: []ChapterEntry{
			{ID: "", Content: "x"},
			{ID: "c1", Content: "x"},
			{ID: "c1", Content: "y"},
			{ID: "c3"},
			{ID: "c4", Content: "x", File: "c4.md"},
			{ID: "c5", File: "c5.pdf"},
		},
	}

	errs := ValidateManifest(m)
	assert.Len(t, errs, 5)

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	assert.Contains(t, msgs, "chapters[0].id is required")
	assert.Contains(t, msgs, `chapters[2].id: duplicate id "c1"`)
	assert.Contains(t, msgs, "chapters[3]: one of content or file is required")
	assert.Contains(t, msgs, "chapters[4]: content and file are mutually exclusive")
	assert.Contains(t, msgs, `chapters[5].file: unsupported extension ".pdf"`)
}
