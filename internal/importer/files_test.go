package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadChapterFile_MarkdownHeading(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "01-arrival.md", "\n# The Arrival\n\nThe train was late.\n\nNobody waited.\n")

	ch, err := ReadChapterFile(path)
	require.NoError(t, err)
	assert.Equal(t, "01-arrival", ch.ID)
	assert.Equal(t, "The Arrival", ch.Title)
	assert.Equal(t, "The train was late.\n\nNobody waited.", ch.Content)
}

func TestReadChapterFile_TextWithoutHeading(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "storm.txt", "Rain hammered the roof.\n")

	ch, err := ReadChapterFile(path)
	require.NoError(t, err)
	assert.Equal(t, "storm", ch.Title)
	assert.Equal(t, "Rain hammered the roof.", ch.Content)
}

func TestReadChapterFile_HTML(t *testing.T) {
	dir := t.TempDir()
	html := `<html><head><title>Book</title></head><body>
<nav>Contents</nav>
<h1>Chapter Three</h1>
<p>She opened   the
 letter.</p>
<div class="aside">ignored</div>
<p></p>
<p>It was <em>blank</em>.</p>
</body></html>`
	path := writeFile(t, dir, "03.html", html)

	ch, err := ReadChapterFile(path)
	require.NoError(t, err)
	assert.Equal(t, "03", ch.ID)
	assert.Equal(t, "Chapter Three", ch.Title)
	assert.Equal(t, "She opened the letter.\n\nIt was blank.", ch.Content)
}

func TestReadChapterFile_HTMLFallsBackToTitleTag(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.html", `<html><head><title>Interlude</title></head><body><p>Quiet.</p></body></html>`)

	ch, err := ReadChapterFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Interlude", ch.Title)
}

func TestReadChapterFile_EmptyIsError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blank.md", "# Only a heading\n")

	_, err := ReadChapterFile(path)
	require.Error(t, err)
}

func TestReadChapterFile_Unsupported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.pdf", "x")

	_, err := ReadChapterFile(path)
	require.Error(t, err)
}

func TestImportDir_SortedByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "02-storm.txt", "Rain.")
	writeFile(t, dir, "01-arrival.md", "# Arrival\nThe train was late.")
	writeFile(t, dir, "03-letter.html", "<h1>Letter</h1><p>Blank.</p>")
	writeFile(t, dir, "cover.png", "binary")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "drafts"), 0o755))

	chapters, err := ImportDir(dir)
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	assert.Equal(t, "01-arrival", chapters[0].ID)
	assert.Equal(t, "02-storm", chapters[1].ID)
	assert.Equal(t, "Letter", chapters[2].Title)
}

func TestImportDir_DuplicateStem(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.md", "A.")
	writeFile(t, dir, "one.txt", "B.")

	_, err := ImportDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"one"`)
}

func TestImportDir_NoChapters(t *testing.T) {
	_, err := ImportDir(t.TempDir())
	require.Error(t, err)
}

func TestImportManifest_ResolvesFilesRelativeToManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "text"), 0o755))
	writeFile(t, filepath.Join(dir, "text"), "storm.md", "# The Storm\nRain.")
	manifest := writeFile(t, dir, "book.json", `{
  "chapters": [
    {"id": "c1", "title": "Arrival", "content": "The train was late."},
    {"id": "c2", "file": "text/storm.md"},
    {"id": "c3", "title": "Kept", "file": "text/storm.md"}
  ]
}`)

	chapters, err := ImportManifest(manifest)
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	assert.Equal(t, "Arrival", chapters[0].Title)
	assert.Equal(t, "c2", chapters[1].ID)
	assert.Equal(t, "The Storm", chapters[1].Title)
	assert.Equal(t, "Rain.", chapters[1].Content)
	assert.Equal(t, "Kept", chapters[2].Title)
}

func TestImportManifest_Invalid(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "book.json", `{"chapters": [{"id": "c1"}]}`)

	_, err := ImportManifest(manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid manifest")
}

func TestImportManifest_BadJSON(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "book.json", `{"chapters": [`)

	_, err := ImportManifest(manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing manifest")
}
