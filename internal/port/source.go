package port

import "chanrag/internal/domain"

// VideoSource supplies video records from the ingestion collaborator's output.
type VideoSource interface {
	// Videos returns all discoverable video records. A video whose transcript
	// is absent is returned with zero captions; the ingest pipeline reports it
	// as missing-transcript.
	Videos() ([]domain.Video, error)
}
