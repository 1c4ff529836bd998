package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"chanrag/internal/adapter/analyzer"
	"chanrag/internal/domain"
)

func newChunker(minTokens, maxTokens int) *TranscriptChunker {
	return NewTranscriptChunker(minTokens, maxTokens, 30, 5, 2, analyzer.NewTokenizer())
}

func TestChunkSplitsAtTokenBudget(t *testing.T) {
	chk := newChunker(5, 15)

	video := domain.Video{
		ID: "v1",
		Captions: []domain.CaptionSegment{
			{Start: 0, End: 5, Text: "intro to tools"},
			{Start: 5, End: 12, Text: "we use FAISS for search"},
			{Start: 12, End: 20, Text: "and sentence transformers for embeddings"},
		},
	}

	units, gaps, err := chk.Chunk(video)
	if err != nil {
		t.Fatal(err)
	}
	if len(gaps) != 0 {
		t.Errorf("expected no coverage gaps, got %v", gaps)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}

	if units[0].Start != 0 || units[0].End != 12 {
		t.Errorf("unit 0 span = (%v, %v), expected (0, 12)", units[0].Start, units[0].End)
	}
	if units[1].Start != 12 || units[1].End != 20 {
		t.Errorf("unit 1 span = (%v, %v), expected (12, 20)", units[1].Start, units[1].End)
	}
	if !strings.Contains(units[0].Text, "FAISS") {
		t.Errorf("unit 0 should contain the second caption, got %q", units[0].Text)
	}
	if units[0].ID != "v1:0000" || units[1].ID != "v1:0001" {
		t.Errorf("unexpected unit IDs: %s, %s", units[0].ID, units[1].ID)
	}
}

func TestChunkDeterministic(t *testing.T) {
	chk := newChunker(5, 15)

	video := domain.Video{
		ID: "v1",
		Captions: []domain.CaptionSegment{
			{Start: 0, End: 5, Text: "intro to tools"},
			{Start: 5, End: 12, Text: "we use FAISS for search"},
			{Start: 12, End: 20, Text: "and sentence transformers for embeddings"},
		},
	}

	first, _, err := chk.Chunk(video)
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := chk.Chunk(video)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("chunking the same video twice must produce identical units")
	}
}

func TestChunkMissingTranscript(t *testing.T) {
	chk := newChunker(5, 15)

	_, _, err := chk.Chunk(domain.Video{ID: "v2"})
	if !errors.Is(err, domain.ErrMissingTranscript) {
		t.Fatalf("expected ErrMissingTranscript, got %v", err)
	}
}

func TestChunkGapDiscontinuity(t *testing.T) {
	chk := NewTranscriptChunker(5, 100, 3, 5, 2, analyzer.NewTokenizer())

	video := domain.Video{
		ID: "v1",
		Captions: []domain.CaptionSegment{
			{Start: 0, End: 2, Text: "hello world one"},
			{Start: 10, End: 12, Text: "second part here"},
		},
	}

	units, gaps, err := chk.Chunk(video)
	if err != nil {
		t.Fatal(err)
	}
	// An 8 second silence exceeds the 3 second tolerance, so the buffer
	// closes even though it is below the min bound.
	if len(units) != 2 {
		t.Fatalf("expected gap to split into 2 units, got %d", len(units))
	}
	if len(gaps) != 1 {
		t.Fatalf("expected 1 coverage gap, got %d", len(gaps))
	}
	if gaps[0].AfterIndex != 0 || gaps[0].Start != 2 || gaps[0].End != 10 {
		t.Errorf("unexpected gap: %+v", gaps[0])
	}
}

func TestChunkPrefersSentenceBoundary(t *testing.T) {
	chk := newChunker(2, 20)

	video := domain.Video{
		ID: "v1",
		Captions: []domain.CaptionSegment{
			{Start: 0, End: 2, Text: "filler words for padding here"},
			{Start: 2, End: 4, Text: "end of the sentence."},
			{Start: 4, End: 6, Text: "next topic starts"},
			{Start: 6, End: 8, Text: "many more words to overflow the budget now"},
		},
	}

	units, _, err := chk.Chunk(video)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if !strings.HasSuffix(units[0].Text, "sentence.") {
		t.Errorf("unit 0 should close at the sentence boundary, got %q", units[0].Text)
	}
	if units[0].End != 4 || units[1].Start != 4 {
		t.Errorf("split should fall at 4s: unit0 end %v, unit1 start %v", units[0].End, units[1].Start)
	}
}

func TestChunkSortsSegmentsByStart(t *testing.T) {
	chk := newChunker(2, 100)

	video := domain.Video{
		ID: "v1",
		Captions: []domain.CaptionSegment{
			{Start: 5, End: 10, Text: "second segment text"},
			{Start: 0, End: 5, Text: "first segment text"},
		},
	}

	units, _, err := chk.Chunk(video)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if !strings.HasPrefix(units[0].Text, "first") {
		t.Errorf("segments should be ordered by start time, got %q", units[0].Text)
	}
	if units[0].Start != 0 || units[0].End != 10 {
		t.Errorf("unit span = (%v, %v), expected (0, 10)", units[0].Start, units[0].End)
	}
}

func TestChunkTokenCountCoversAllSegments(t *testing.T) {
	chk := newChunker(2, 100)
	tokenizer := analyzer.NewTokenizer()

	video := domain.Video{
		ID: "v1",
		Captions: []domain.CaptionSegment{
			{Start: 0, End: 5, Text: "one two three"},
			{Start: 5, End: 10, Text: "four five six seven"},
		},
	}

	units, _, err := chk.Chunk(video)
	if err != nil {
		t.Fatal(err)
	}
	expected := tokenizer.CountTokens("one two three") + tokenizer.CountTokens("four five six seven")
	if units[0].TokenCount != expected {
		t.Errorf("TokenCount = %d, expected %d", units[0].TokenCount, expected)
	}
}
