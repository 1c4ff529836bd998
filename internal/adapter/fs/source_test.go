package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

const videoJSON = `{
  "id": "abc123",
  "title": "How fermentation works",
  "url": "https://example.com/watch?v=abc123",
  "published_at": "2024-03-15T10:00:00Z",
  "duration": 600,
  "transcript": [
    {"start_time": 0, "end_time": 5, "text": "welcome back everyone"},
    {"start_time": 5, "end_time": 12, "text": "today we talk about fermentation"}
  ]
}`

func TestSourceLoadsJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "abc123.json", videoJSON)

	videos, err := NewSource(dir, nil, nil).Videos()
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 1 {
		t.Fatalf("expected 1 video, got %d", len(videos))
	}

	v := videos[0]
	if v.ID != "abc123" || v.Title != "How fermentation works" {
		t.Errorf("unexpected video: %+v", v)
	}
	if v.PublishedAt.IsZero() {
		t.Error("published_at not parsed")
	}
	if len(v.Captions) != 2 {
		t.Fatalf("expected 2 captions, got %d", len(v.Captions))
	}
	if v.Captions[1].Start != 5 || v.Captions[1].End != 12 {
		t.Errorf("caption span = (%v, %v)", v.Captions[1].Start, v.Captions[1].End)
	}
}

func TestSourceLoadsSRT(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "xyz789.srt", `1
00:00:00,000 --> 00:00:03,000
hello from the subtitles
`)

	videos, err := NewSource(dir, nil, nil).Videos()
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 1 {
		t.Fatalf("expected 1 video, got %d", len(videos))
	}
	if videos[0].ID != "xyz789" {
		t.Errorf("SRT video ID should come from the filename, got %s", videos[0].ID)
	}
	if videos[0].Duration != 3 {
		t.Errorf("duration should come from the last caption, got %v", videos[0].Duration)
	}
}

func TestSourceEmptyTranscriptKept(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.json", `{"id": "v2", "title": "no captions", "transcript": []}`)

	videos, err := NewSource(dir, nil, nil).Videos()
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 1 {
		t.Fatalf("a captionless video must still be reported, got %d videos", len(videos))
	}
	if len(videos[0].Captions) != 0 {
		t.Errorf("expected zero captions, got %v", videos[0].Captions)
	}
}

func TestSourceExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.json", videoJSON)
	writeFile(t, dir, "drafts/skip.json", videoJSON)

	videos, err := NewSource(dir, []string{"**/*.json"}, []string{"drafts/**"}).Videos()
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 1 {
		t.Fatalf("expected the drafts directory excluded, got %d videos", len(videos))
	}
}

func TestSourceOrderedByID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `{"id": "b", "transcript": []}`)
	writeFile(t, dir, "a.json", `{"id": "a", "transcript": []}`)

	videos, err := NewSource(dir, nil, nil).Videos()
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 2 || videos[0].ID != "a" || videos[1].ID != "b" {
		t.Errorf("videos must come back ordered by ID: %v", videos)
	}
}
