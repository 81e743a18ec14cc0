package importer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alexanderramin/inkwell/internal/refine"
)

var readers = map[string]func(path, stem string) (refine.ChapterInput, error){
	".md":   readText,
	".txt":  readText,
	".html": readHTML,
	".htm":  readHTML,
}

func supported(name string) bool {
	_, ok := readers[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ReadChapterFile parses one chapter file. The id is the file stem.
func ReadChapterFile(path string) (refine.ChapterInput, error) {
	ext := strings.ToLower(filepath.Ext(path))
	read, ok := readers[ext]
	if !ok {
		return refine.ChapterInput{}, fmt.Errorf("unsupported chapter file %q", filepath.Base(path))
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ch, err := read(path, stem)
	if err != nil {
		return refine.ChapterInput{}, err
	}
	if strings.TrimSpace(ch.Content) == "" {
		return refine.ChapterInput{}, fmt.Errorf("chapter file %q has no text", filepath.Base(path))
	}
	return ch, nil
}

// ImportDir reads every supported file directly under dir, sorted by name.
// Subdirectories and other files are skipped.
func ImportDir(dir string) ([]refine.ChapterInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !supported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no .md, .txt or .html chapters found in %s", dir)
	}
	sort.Strings(names)

	out := make([]refine.ChapterInput, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		ch, err := ReadChapterFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[ch.ID]; dup {
			return nil, fmt.Errorf("files %q and %q share the chapter id %q", prev, name, ch.ID)
		}
		seen[ch.ID] = name
		out = append(out, ch)
	}
	return out, nil
}

// readText takes the title from a leading "# " heading, which is then
// dropped from the content, or falls back to the file stem.
func readText(path, stem string) (refine.ChapterInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return refine.ChapterInput{}, err
	}
	defer f.Close()

	ch := refine.ChapterInput{ID: stem, Title: stem}
	var lines []string
	headingSeen := false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := sc.Text()
		if !headingSeen && len(lines) == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			headingSeen = true
			if strings.HasPrefix(trimmed, "# ") {
				ch.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
				continue
			}
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return refine.ChapterInput{}, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	ch.Content = strings.TrimSpace(strings.Join(lines, "\n"))
	return ch, nil
}

// readHTML keeps paragraph text only, one paragraph per blank-line block.
func readHTML(path, stem string) (refine.ChapterInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return refine.ChapterInput{}, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return refine.ChapterInput{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		title = stem
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.Join(strings.Fields(p.Text()), " ")
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	return refine.ChapterInput{ID: stem, Title: title, Content: strings.Join(paragraphs, "\n\n")}, nil
}
