package store

import (
	"context"
	"sort"

	"chanrag/internal/domain"
	"chanrag/internal/port"
)

// preFilterFactor sizes the expected candidate set for a filtered search.
const preFilterFactor = 4

// Search returns up to topK entries ranked by dot product against the query
// vector (cosine similarity for unit-length vectors). Ties break toward the
// more recently published video, then the lower sequence index. When the
// filtered universe is smaller than topK, all qualifying entries come back
// together with domain.ErrPartialResult so filtered results are never
// silently short.
func (s *BoltStore) Search(ctx context.Context, vector []float32, topK int, filters domain.Filters) ([]port.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	match := s.filterPredicate(filters)
	scored := make([]scoredEntry, 0, minInt(len(s.entries), topK*preFilterFactor))
	i := 0
	for id, e := range s.entries {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		i++
		if !match(e) {
			continue
		}
		scored = append(scored, scoredEntry{
			id:        id,
			score:     dot(vector, e.vector),
			published: s.published[e.videoID].Unix(),
			seq:       e.seq,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.published != b.published {
			return a.published > b.published
		}
		return a.seq < b.seq
	})

	// The filtered universe is exactly the set that scored; anything short
	// of topK means the universe itself is smaller.
	partial := !filters.Empty() && len(scored) < topK
	if len(scored) > topK {
		scored = scored[:topK]
	}

	results := make([]port.SearchResult, len(scored))
	for i, sc := range scored {
		results[i] = port.SearchResult{UnitID: sc.id, Score: sc.score}
	}
	if partial {
		return results, domain.ErrPartialResult
	}
	return results, nil
}

// LookupByFilter returns the sorted unit IDs matching the filters.
func (s *BoltStore) LookupByFilter(filters domain.Filters) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match := s.filterPredicate(filters)
	var ids []string
	for id, e := range s.entries {
		if match(e) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type scoredEntry struct {
	id        string
	score     float64
	published int64
	seq       int
}

func (s *BoltStore) filterPredicate(f domain.Filters) func(cacheEntry) bool {
	if f.Empty() {
		return func(cacheEntry) bool { return true }
	}

	videoSet := make(map[string]struct{}, len(f.VideoIDs))
	for _, id := range f.VideoIDs {
		videoSet[id] = struct{}{}
	}
	entitySet := make(map[string]struct{}, len(f.Entities))
	for _, ent := range f.Entities {
		entitySet[ent] = struct{}{}
	}

	return func(e cacheEntry) bool {
		if len(videoSet) > 0 {
			if _, ok := videoSet[e.videoID]; !ok {
				return false
			}
		}
		if len(entitySet) > 0 {
			found := false
			for _, ent := range e.entities {
				if _, ok := entitySet[ent]; ok {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		if !f.After.IsZero() || !f.Before.IsZero() {
			published := s.published[e.videoID]
			if !f.After.IsZero() && published.Before(f.After) {
				return false
			}
			if !f.Before.IsZero() && published.After(f.Before) {
				return false
			}
		}
		return true
	}
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
