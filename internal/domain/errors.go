package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingTranscript marks a video that produced zero caption segments
	// and had no transcription fallback. The video ingests with zero units and
	// is flagged, not retried.
	ErrMissingTranscript = errors.New("missing transcript")

	// ErrNoRelevantContent is the query-time outcome when no result clears the
	// relevance cutoff. Callers must surface it as a distinct condition, not
	// an empty answer.
	ErrNoRelevantContent = errors.New("no relevant content")

	// ErrIndexCorruption means the on-disk store failed its integrity check.
	// The store refuses to serve until an explicit rebuild.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrPartialResult signals that a filtered search returned fewer than
	// top_k entries because the filtered universe itself is smaller.
	ErrPartialResult = errors.New("partial result")
)

// EmbeddingError wraps a failure of the embedding model interface after all
// retry attempts were exhausted.
type EmbeddingError struct {
	Attempts int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IngestFailure records the outcome of one video's failed ingestion. Failures
// are isolated per video; the prior index state for that video is untouched.
type IngestFailure struct {
	VideoID string
	Err     error
}

func (f *IngestFailure) Error() string {
	return fmt.Sprintf("ingest %s: %v", f.VideoID, f.Err)
}

func (f *IngestFailure) Unwrap() error { return f.Err }
