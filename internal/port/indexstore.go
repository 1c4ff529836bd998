package port

import (
	"context"

	"chanrag/internal/domain"
)

// SearchResult is one ranked hit from a vector search.
type SearchResult struct {
	UnitID string
	Score  float64
}

// IndexStore persists vectors, unit metadata and entity postings, and answers
// nearest-neighbor and filtered-lookup queries.
type IndexStore interface {
	// Upsert adds or fully replaces entries by unit ID.
	Upsert(entries []domain.IndexEntry) error

	// ReplaceVideo atomically swaps all entries of a video for the given set.
	// On error the prior entries remain visible; a concurrent reader never
	// observes a mix of old and new state.
	ReplaceVideo(video domain.Video, entries []domain.IndexEntry) error

	// Delete removes entries by unit ID.
	Delete(unitIDs []string) error

	// DeleteVideo removes the video record and every entry owned by it.
	DeleteVideo(videoID string) error

	// Search returns up to topK entries ranked by similarity to the query
	// vector, restricted by filters. When the filtered universe is smaller
	// than topK it returns all qualifying entries alongside
	// domain.ErrPartialResult.
	Search(ctx context.Context, vector []float32, topK int, filters domain.Filters) ([]SearchResult, error)

	// LookupByFilter returns the unit IDs matching the filters.
	LookupByFilter(filters domain.Filters) ([]string, error)

	// Unit loads one entry by ID.
	Unit(unitID string) (domain.IndexEntry, error)

	// Neighbors returns the entries at sequence index seq-1 and seq+1 of the
	// video, when they exist.
	Neighbors(videoID string, seq int) ([]domain.IndexEntry, error)

	// Video loads one video record.
	Video(videoID string) (domain.Video, error)

	// Videos lists all video records known to the index.
	Videos() ([]domain.Video, error)

	// Count returns the number of persisted entries.
	Count() (int, error)

	// Generation increments on every write and invalidates cached query
	// results.
	Generation() uint64

	Close() error
}
