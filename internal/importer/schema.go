package importer

import (
	"encoding/json"
	"fmt"
	"os"
)

// Manifest is the top-level JSON structure for chapter import.
type Manifest struct {
	Chapters []ChapterEntry `json:"chapters"`
}

// ChapterEntry defines one chapter in the manifest. Exactly one of Content
// and File is expected; File is resolved relative to the manifest.
type ChapterEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	File    string `json:"file,omitempty"`
}

// LoadManifest reads and parses a chapter manifest JSON file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
