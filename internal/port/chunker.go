package port

import "chanrag/internal/domain"

// Chunker splits one video's transcript into retrievable units.
type Chunker interface {
	// Chunk returns the ordered unit sequence covering the transcript plus
	// any coverage gaps exceeding the configured tolerance. A video with zero
	// captions returns domain.ErrMissingTranscript.
	Chunk(video domain.Video) ([]domain.Unit, []domain.CoverageGap, error)
}
