package usecase

import (
	"context"
	"errors"
	"log"
	"sync"

	"chanrag/internal/domain"
	"chanrag/internal/port"
)

// Video ingestion statuses.
const (
	StatusIndexed = "indexed"
	StatusMissing = "missing-transcript"
	StatusFailed  = "failed"
)

// VideoOutcome reports one video's ingestion result.
type VideoOutcome struct {
	VideoID      string
	Status       string
	Units        int
	FlaggedUnits int // units whose entity extraction failed, queued for reprocessing
	Gaps         []domain.CoverageGap
	Err          error
}

// IngestResult aggregates per-video outcomes of one ingestion run.
type IngestResult struct {
	Indexed  int
	Missing  int
	Failed   int
	Outcomes []VideoOutcome
}

// ProgressFunc receives ingestion progress updates.
type ProgressFunc func(processed, total int, videoID string)

// IngestUseCase runs the batch pipeline chunk -> embed -> extract-entities ->
// index over independent videos with bounded parallelism. Each video's units
// commit atomically: on failure partway the prior index state for that video
// stays untouched, and one video's failure never blocks others.
type IngestUseCase struct {
	store     port.IndexStore
	chunker   port.Chunker
	embedder  port.Embedder
	extractor port.EntityExtractor
	workers   int
	progress  ProgressFunc
}

// NewIngestUseCase creates an ingest use case.
func NewIngestUseCase(
	store port.IndexStore,
	chunker port.Chunker,
	embedder port.Embedder,
	extractor port.EntityExtractor,
	workers int,
) *IngestUseCase {
	if workers <= 0 {
		workers = 1
	}
	return &IngestUseCase{
		store:     store,
		chunker:   chunker,
		embedder:  embedder,
		extractor: extractor,
		workers:   workers,
	}
}

// SetProgress installs a progress callback invoked once per finished video.
func (u *IngestUseCase) SetProgress(fn ProgressFunc) {
	u.progress = fn
}

// IngestSource ingests every video the source supplies.
func (u *IngestUseCase) IngestSource(ctx context.Context, source port.VideoSource) (*IngestResult, error) {
	videos, err := source.Videos()
	if err != nil {
		return nil, err
	}
	return u.Ingest(ctx, videos)
}

// Ingest processes the given videos through the pipeline.
func (u *IngestUseCase) Ingest(ctx context.Context, videos []domain.Video) (*IngestResult, error) {
	jobs := make(chan domain.Video)
	outcomes := make([]VideoOutcome, len(videos))
	index := make(map[string]int, len(videos))
	for i, v := range videos {
		index[v.ID] = i
	}

	var wg sync.WaitGroup
	var processed int
	var mu sync.Mutex

	for w := 0; w < u.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for video := range jobs {
				outcome := u.ingestVideo(ctx, video)

				mu.Lock()
				outcomes[index[video.ID]] = outcome
				processed++
				done := processed
				mu.Unlock()

				if u.progress != nil {
					u.progress(done, len(videos), video.ID)
				}
			}
		}()
	}

	for _, video := range videos {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- video:
		}
	}
	close(jobs)
	wg.Wait()

	result := &IngestResult{Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case StatusIndexed:
			result.Indexed++
		case StatusMissing:
			result.Missing++
		case StatusFailed:
			result.Failed++
		}
	}
	return result, nil
}

// ingestVideo runs one video through the pipeline. Errors are folded into
// the outcome; nothing is written to the store unless the whole pipeline
// succeeded for this video.
func (u *IngestUseCase) ingestVideo(ctx context.Context, video domain.Video) VideoOutcome {
	outcome := VideoOutcome{VideoID: video.ID}

	units, gaps, err := u.chunker.Chunk(video)
	if err != nil {
		if errors.Is(err, domain.ErrMissingTranscript) {
			// The video is recorded with zero units so the condition is
			// visible, and queries can never cite it.
			if rerr := u.store.ReplaceVideo(video, nil); rerr != nil {
				outcome.Status = StatusFailed
				outcome.Err = rerr
				return outcome
			}
			outcome.Status = StatusMissing
			outcome.Err = err
			return outcome
		}
		outcome.Status = StatusFailed
		outcome.Err = &domain.IngestFailure{VideoID: video.ID, Err: err}
		return outcome
	}
	outcome.Gaps = gaps

	texts := make([]string, len(units))
	for i, unit := range units {
		texts[i] = unit.Text
	}
	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = &domain.IngestFailure{VideoID: video.ID, Err: err}
		return outcome
	}
	if len(vectors) != len(units) {
		outcome.Status = StatusFailed
		outcome.Err = &domain.IngestFailure{VideoID: video.ID, Err: domain.ErrPartialResult}
		return outcome
	}

	entries := make([]domain.IndexEntry, len(units))
	for i := range units {
		units[i].Embedding = vectors[i]

		// Entity extraction failure is non-fatal: the unit ingests with an
		// empty set and is flagged for reprocessing.
		entities, err := u.extractor.Extract(units[i].Text)
		if err != nil {
			log.Printf("ingest %s: entity extraction failed for %s: %v", video.ID, units[i].ID, err)
			outcome.FlaggedUnits++
			entities = nil
		}
		units[i].Entities = entities
		entries[i] = domain.EntryFromUnit(units[i])
	}

	if err := u.store.ReplaceVideo(video, entries); err != nil {
		outcome.Status = StatusFailed
		outcome.Err = &domain.IngestFailure{VideoID: video.ID, Err: err}
		return outcome
	}

	outcome.Status = StatusIndexed
	outcome.Units = len(units)
	return outcome
}
