package importer

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/alexanderramin/inkwell/internal/refine"
)

// Convert turns a manifest into chapter inputs. File entries are read
// relative to baseDir, and a file's own title fills in a missing one.
func Convert(m *Manifest, baseDir string) ([]refine.ChapterInput, error) {
	if errs := ValidateManifest(m); len(errs) > 0 {
		return nil, fmt.Errorf("invalid manifest: %w", errors.Join(errs...))
	}

	out := make([]refine.ChapterInput, 0, len(m.Chapters))
	for _, entry := range m.Chapters {
		ch := refine.ChapterInput{ID: entry.ID, Title: entry.Title, Content: entry.Content}
		if entry.File != "" {
			path := entry.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			parsed, err := ReadChapterFile(path)
			if err != nil {
				return nil, fmt.Errorf("chapter %s: %w", entry.ID, err)
			}
			ch.Content = parsed.Content
			if ch.Title == "" {
				ch.Title = parsed.Title
			}
		}
		out = append(out, ch)
	}
	return out, nil
}

// ImportManifest loads, validates and converts the manifest at path.
func ImportManifest(path string) ([]refine.ChapterInput, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return Convert(m, filepath.Dir(path))
}
