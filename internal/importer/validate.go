package importer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateManifest checks the manifest for errors before conversion.
// Returns a slice of all validation errors found.
func ValidateManifest(m *Manifest) []error {
	var errs []error

	if len(m.Chapters) == 0 {
		errs = append(errs, fmt.Errorf("chapters: at least one chapter is required"))
	}

	ids := make(map[string]bool)
	for i, ch := range m.Chapters {
		prefix := fmt.Sprintf("chapters[%d]", i)

		if strings.TrimSpace(ch.ID) == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else if ids[ch.ID] {
			errs = append(errs, fmt.Errorf("%s.id: duplicate id %q", prefix, ch.ID))
		} else {
			ids[ch.ID] = true
		}

		switch {
		case ch.Content == "" && ch.File == "":
			errs = append(errs, fmt.Errorf("%s: one of content or file is required", prefix))
		case ch.Content != "" && ch.File != "":
			errs = append(errs, fmt.Errorf("%s: content and file are mutually exclusive", prefix))
		case ch.File != "":
			if !supported(ch.File) {
				errs = append(errs, fmt.Errorf("%s.file: unsupported extension %q", prefix, filepath.Ext(ch.File)))
			}
		}
	}

	return errs
}
