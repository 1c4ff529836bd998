package chunker

import (
	"sort"
	"strings"

	"chanrag/internal/adapter/analyzer"
	"chanrag/internal/domain"
)

// TranscriptChunker splits a video's caption segments into token-bounded
// units with timestamp spans. Chunking is deterministic: identical input and
// parameters always produce an identical unit sequence, so re-ingesting
// unchanged content is a no-op against the index.
type TranscriptChunker struct {
	minTokens         int
	maxTokens         int
	gapTolerance      float64
	backtrackWindow   int
	coverageTolerance float64
	tokenizer         *analyzer.Tokenizer
}

// NewTranscriptChunker creates a chunker with the given size bounds (tokens),
// caption gap tolerance and coverage tolerance (seconds).
func NewTranscriptChunker(minTokens, maxTokens int, gapTolerance float64, backtrackWindow int, coverageTolerance float64, tokenizer *analyzer.Tokenizer) *TranscriptChunker {
	if backtrackWindow <= 0 {
		backtrackWindow = 5
	}
	return &TranscriptChunker{
		minTokens:         minTokens,
		maxTokens:         maxTokens,
		gapTolerance:      gapTolerance,
		backtrackWindow:   backtrackWindow,
		coverageTolerance: coverageTolerance,
		tokenizer:         tokenizer,
	}
}

type segment struct {
	domain.CaptionSegment
	tokens int
}

// Chunk splits the video transcript into units.
func (c *TranscriptChunker) Chunk(video domain.Video) ([]domain.Unit, []domain.CoverageGap, error) {
	if len(video.Captions) == 0 {
		return nil, nil, domain.ErrMissingTranscript
	}

	segments := make([]segment, 0, len(video.Captions))
	for _, cs := range video.Captions {
		segments = append(segments, segment{
			CaptionSegment: cs,
			tokens:         c.tokenizer.CountTokens(cs.Text),
		})
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	var units []domain.Unit
	var buffer []segment
	bufTokens := 0

	flush := func(segs []segment) {
		if len(segs) == 0 {
			return
		}
		units = append(units, c.buildUnit(video.ID, len(units), segs))
	}

	for _, seg := range segments {
		if len(buffer) > 0 {
			// Caption silence beyond the tolerance is a semantic
			// discontinuity; sub-min units are allowed here.
			if seg.Start-buffer[len(buffer)-1].End > c.gapTolerance {
				flush(buffer)
				buffer = nil
				bufTokens = 0
			} else if bufTokens+seg.tokens >= c.maxTokens && bufTokens >= c.minTokens {
				head, tail := c.splitAtSentence(buffer)
				flush(head)
				// The remainder after the sentence boundary merges
				// forward into the next unit.
				buffer = tail
				bufTokens = 0
				for _, s := range buffer {
					bufTokens += s.tokens
				}
			}
		}
		buffer = append(buffer, seg)
		bufTokens += seg.tokens
	}
	flush(buffer)

	return units, c.coverageGaps(units), nil
}

// splitAtSentence prefers closing the buffer after a segment whose text ends
// a sentence, searching backwards within the backtrack window. The prefix is
// only accepted when it still meets the min bound.
func (c *TranscriptChunker) splitAtSentence(buffer []segment) (head, tail []segment) {
	limit := len(buffer) - c.backtrackWindow
	if limit < 1 {
		limit = 1
	}
	for i := len(buffer) - 1; i >= limit; i-- {
		if !analyzer.EndsSentence(buffer[i].Text) {
			continue
		}
		prefixTokens := 0
		for _, s := range buffer[:i+1] {
			prefixTokens += s.tokens
		}
		if prefixTokens >= c.minTokens {
			return buffer[:i+1], append([]segment(nil), buffer[i+1:]...)
		}
	}
	return buffer, nil
}

func (c *TranscriptChunker) buildUnit(videoID string, seq int, segs []segment) domain.Unit {
	start := segs[0].Start
	end := segs[0].End
	tokens := 0
	texts := make([]string, 0, len(segs))
	for _, s := range segs {
		if s.Start < start {
			start = s.Start
		}
		if s.End > end {
			end = s.End
		}
		tokens += s.tokens
		texts = append(texts, s.Text)
	}
	return domain.Unit{
		ID:            domain.UnitID(videoID, seq),
		VideoID:       videoID,
		SequenceIndex: seq,
		Start:         start,
		End:           end,
		Text:          strings.Join(texts, " "),
		TokenCount:    tokens,
	}
}

// coverageGaps records uncovered spans between consecutive units larger than
// the coverage tolerance.
func (c *TranscriptChunker) coverageGaps(units []domain.Unit) []domain.CoverageGap {
	var gaps []domain.CoverageGap
	for i := 1; i < len(units); i++ {
		prev, next := units[i-1], units[i]
		if next.Start-prev.End > c.coverageTolerance {
			gaps = append(gaps, domain.CoverageGap{
				AfterIndex: prev.SequenceIndex,
				Start:      prev.End,
				End:        next.Start,
			})
		}
	}
	return gaps
}
