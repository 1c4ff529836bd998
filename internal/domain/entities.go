package domain

import (
	"fmt"
	"time"
)

// CaptionSegment is one timed span of transcript text as delivered by the
// ingestion collaborator (platform captions or the transcription fallback).
type CaptionSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Video is the read-only input record for one video. The core never mutates
// it except for the LastSeen refresh marker.
type Video struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	URL         string           `json:"url,omitempty"`
	PublishedAt time.Time        `json:"published_at"`
	Duration    float64          `json:"duration"`
	LastSeen    time.Time        `json:"last_seen,omitempty"`
	Captions    []CaptionSegment `json:"captions"`
}

// Unit is the atomic retrievable span of transcript text.
type Unit struct {
	ID            string    `json:"id"`
	VideoID       string    `json:"video_id"`
	SequenceIndex int       `json:"sequence_index"`
	Start         float64   `json:"start"`
	End           float64   `json:"end"`
	Text          string    `json:"text"`
	TokenCount    int       `json:"token_count"`
	Entities      []string  `json:"entities,omitempty"`
	Embedding     []float32 `json:"-"`
}

// UnitID derives the stable identifier for a unit. Re-chunking unchanged
// content yields the same IDs, which is what makes re-ingestion a no-op
// against the index.
func UnitID(videoID string, seq int) string {
	return fmt.Sprintf("%s:%04d", videoID, seq)
}

// CoverageGap records an uncovered span between consecutive units of a video
// larger than the configured tolerance. Gaps indicate missing captions and
// are reported, never silently dropped.
type CoverageGap struct {
	AfterIndex int     `json:"after_index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

// Filters narrows a search to units matching every populated field.
type Filters struct {
	Entities []string
	VideoIDs []string
	After    time.Time
	Before   time.Time
}

// Empty reports whether no filter field is populated.
func (f Filters) Empty() bool {
	return len(f.Entities) == 0 && len(f.VideoIDs) == 0 && f.After.IsZero() && f.Before.IsZero()
}

// Query is the ephemeral request shape for one retrieval.
type Query struct {
	Text             string
	Filters          Filters
	TopK             int
	MaxContextTokens int
}

// Retrieval reasons attached to result-set entries. Neighbors are ranked and
// truncated independently of direct matches downstream.
const (
	ReasonMatch    = "match"
	ReasonNeighbor = "neighbor"
)

// Retrieved is one scored entry of a result set.
type Retrieved struct {
	Unit   Unit
	Score  float64
	Reason string
}

// Citation anchors a context item back to its source span. VideoID, Start and
// End are the contract; Title and URL ride along for presentation.
type Citation struct {
	VideoID string  `json:"video_id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Title   string  `json:"title,omitempty"`
	URL     string  `json:"url,omitempty"`
}

// ContextItem is one unit included in the assembled context.
type ContextItem struct {
	Text     string   `json:"text"`
	Citation Citation `json:"citation"`
	Score    float64  `json:"score"`
	Reason   string   `json:"reason"`
}

// ContextPayload is the token-bounded, citation-annotated bundle handed to
// the answer generator.
type ContextPayload struct {
	Question     string        `json:"question"`
	Items        []ContextItem `json:"items"`
	BudgetTokens int           `json:"budget_tokens"`
	UsedTokens   int           `json:"used_tokens"`
	Truncated    bool          `json:"truncated"`
	Dropped      int           `json:"dropped,omitempty"`
}

// IndexEntry is the persisted projection of a unit: its vector plus the
// metadata needed to answer filtered lookups without loading text.
type IndexEntry struct {
	UnitID        string
	VideoID       string
	SequenceIndex int
	Start         float64
	End           float64
	TokenCount    int
	Entities      []string
	Vector        []float32
	Text          string
}

// EntryFromUnit projects a unit into its index entry.
func EntryFromUnit(u Unit) IndexEntry {
	return IndexEntry{
		UnitID:        u.ID,
		VideoID:       u.VideoID,
		SequenceIndex: u.SequenceIndex,
		Start:         u.Start,
		End:           u.End,
		TokenCount:    u.TokenCount,
		Entities:      u.Entities,
		Vector:        u.Embedding,
		Text:          u.Text,
	}
}

// Unit reconstructs the unit view of an entry.
func (e IndexEntry) Unit() Unit {
	return Unit{
		ID:            e.UnitID,
		VideoID:       e.VideoID,
		SequenceIndex: e.SequenceIndex,
		Start:         e.Start,
		End:           e.End,
		Text:          e.Text,
		TokenCount:    e.TokenCount,
		Entities:      e.Entities,
		Embedding:     e.Vector,
	}
}
