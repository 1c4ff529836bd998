package usecase

import (
	"context"
	"errors"
	"sort"

	"chanrag/internal/adapter/cache"
	"chanrag/internal/domain"
	"chanrag/internal/port"
)

// QueryOptions tune the retrieval plan.
type QueryOptions struct {
	TopK            int
	Oversample      int
	MinScore        float64
	ExpandNeighbors bool
}

// QueryUseCase plans and executes one retrieval: embed the question, narrow
// by filters, vector-search an oversampled candidate set, cut off weak
// matches and expand the survivors with their transcript neighbors.
type QueryUseCase struct {
	store     port.IndexStore
	embedder  port.Embedder
	extractor port.EntityExtractor
	cache     *cache.QueryCache
	opts      QueryOptions
}

// NewQueryUseCase creates a query use case. The cache may be nil.
func NewQueryUseCase(
	store port.IndexStore,
	embedder port.Embedder,
	extractor port.EntityExtractor,
	queryCache *cache.QueryCache,
	opts QueryOptions,
) *QueryUseCase {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.Oversample <= 0 {
		opts.Oversample = 4
	}
	return &QueryUseCase{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		cache:     queryCache,
		opts:      opts,
	}
}

// Retrieve runs the retrieval plan for the query. When the filtered universe
// is smaller than requested it returns the qualifying results alongside
// domain.ErrPartialResult; a result set with no unit above the score cutoff
// returns domain.ErrNoRelevantContent.
func (u *QueryUseCase) Retrieve(ctx context.Context, query domain.Query) ([]domain.Retrieved, error) {
	topK := query.TopK
	if topK <= 0 {
		topK = u.opts.TopK
	}

	gen := u.store.Generation()
	if u.cache != nil {
		if results, ok := u.cache.Get(query.Text, topK, query.Filters, gen); ok {
			return results, nil
		}
	}

	vectors, err := u.embedder.Embed(ctx, []string{query.Text})
	if err != nil {
		return nil, err
	}
	vector := vectors[0]

	filters := query.Filters
	augmented := false
	if filters.Empty() {
		if entities := u.questionEntities(query.Text); len(entities) > 0 {
			filters.Entities = entities
			augmented = true
		}
	}

	matches, partial, err := u.search(ctx, vector, topK, filters)
	if err != nil {
		return nil, err
	}

	// An augmented entity filter is a hint, not a caller constraint: when it
	// strangles the result set, fall back to the unrestricted search, and
	// never report a short result as partial on its account.
	if augmented {
		partial = false
		if len(matches) == 0 {
			matches, _, err = u.search(ctx, vector, topK, query.Filters)
			if err != nil {
				return nil, err
			}
		}
	}
	if len(matches) == 0 {
		return nil, domain.ErrNoRelevantContent
	}

	results := matches
	if u.opts.ExpandNeighbors {
		results = u.expand(matches)
	}

	if u.cache != nil && !partial {
		u.cache.Put(query.Text, topK, query.Filters, gen, results)
	}
	if partial {
		return results, domain.ErrPartialResult
	}
	return results, nil
}

// search runs one oversampled vector search and applies the score cutoff.
func (u *QueryUseCase) search(ctx context.Context, vector []float32, topK int, filters domain.Filters) ([]domain.Retrieved, bool, error) {
	hits, err := u.store.Search(ctx, vector, topK*u.opts.Oversample, filters)
	partial := errors.Is(err, domain.ErrPartialResult)
	if err != nil && !partial {
		return nil, false, err
	}

	matches := make([]domain.Retrieved, 0, topK)
	for _, hit := range hits {
		if hit.Score < u.opts.MinScore {
			continue
		}
		entry, err := u.store.Unit(hit.UnitID)
		if err != nil {
			return nil, false, err
		}
		matches = append(matches, domain.Retrieved{
			Unit:   entry.Unit(),
			Score:  hit.Score,
			Reason: domain.ReasonMatch,
		})
		if len(matches) == topK {
			break
		}
	}
	// The oversampled fetch reports short against its inflated request; only
	// a result set short of the caller's topK is partial.
	partial = partial && len(matches) < topK
	return matches, partial, nil
}

// questionEntities extracts entities from the question text and keeps only
// those the index has postings for, so an over-eager extraction never filters
// the search down to nothing it could have matched.
func (u *QueryUseCase) questionEntities(question string) []string {
	entities, err := u.extractor.Extract(question)
	if err != nil || len(entities) == 0 {
		return nil
	}
	known := make([]string, 0, len(entities))
	for _, entity := range entities {
		ids, err := u.store.LookupByFilter(domain.Filters{Entities: []string{entity}})
		if err != nil || len(ids) == 0 {
			continue
		}
		known = append(known, entity)
	}
	return known
}

// neighborScoreScale discounts the score a neighbor inherits from the match
// that pulled it in, so a neighbor never ties its own match.
const neighborScoreScale = 0.9

// expand appends the immediate transcript neighbors of each match. A unit
// already present as a match is never demoted to a neighbor, and a neighbor
// shared by two matches appears once with the higher parent score.
func (u *QueryUseCase) expand(matches []domain.Retrieved) []domain.Retrieved {
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		seen[m.Unit.ID] = true
	}

	neighbors := make(map[string]domain.Retrieved)
	for _, m := range matches {
		adjacent, err := u.store.Neighbors(m.Unit.VideoID, m.Unit.SequenceIndex)
		if err != nil {
			continue
		}
		for _, entry := range adjacent {
			if seen[entry.UnitID] {
				continue
			}
			score := m.Score * neighborScoreScale
			if prev, ok := neighbors[entry.UnitID]; ok && prev.Score >= score {
				continue
			}
			neighbors[entry.UnitID] = domain.Retrieved{
				Unit:   entry.Unit(),
				Score:  score,
				Reason: domain.ReasonNeighbor,
			}
		}
	}
	if len(neighbors) == 0 {
		return matches
	}

	expanded := make([]domain.Retrieved, 0, len(matches)+len(neighbors))
	expanded = append(expanded, matches...)
	for _, n := range neighbors {
		expanded = append(expanded, n)
	}
	sort.SliceStable(expanded, func(i, j int) bool {
		a, b := expanded[i], expanded[j]
		if a.Reason != b.Reason {
			return a.Reason == domain.ReasonMatch
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Unit.VideoID != b.Unit.VideoID {
			return a.Unit.VideoID < b.Unit.VideoID
		}
		return a.Unit.SequenceIndex < b.Unit.SequenceIndex
	})
	return expanded
}
