package usecase

import (
	"sort"

	"chanrag/internal/domain"
	"chanrag/internal/port"
)

// AssembleUseCase packs a retrieval result set into a token-bounded,
// citation-annotated context payload. Direct matches outrank neighbors
// regardless of score, and a unit too large for the remaining budget is
// skipped rather than ending the packing.
type AssembleUseCase struct {
	store        port.IndexStore
	budgetTokens int
}

// NewAssembleUseCase creates an assembler with the given default budget.
func NewAssembleUseCase(store port.IndexStore, budgetTokens int) *AssembleUseCase {
	if budgetTokens <= 0 {
		budgetTokens = 4000
	}
	return &AssembleUseCase{store: store, budgetTokens: budgetTokens}
}

// Assemble builds the context payload for the question. A zero budget falls
// back to the configured default.
func (u *AssembleUseCase) Assemble(question string, results []domain.Retrieved, budgetTokens int) (*domain.ContextPayload, error) {
	if budgetTokens <= 0 {
		budgetTokens = u.budgetTokens
	}

	ordered := dedupe(results)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
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

	payload := &domain.ContextPayload{
		Question:     question,
		BudgetTokens: budgetTokens,
	}
	videos := make(map[string]domain.Video)

	for _, r := range ordered {
		if payload.UsedTokens+r.Unit.TokenCount > budgetTokens {
			payload.Truncated = true
			payload.Dropped++
			continue
		}

		video, ok := videos[r.Unit.VideoID]
		if !ok {
			loaded, err := u.store.Video(r.Unit.VideoID)
			if err != nil {
				return nil, err
			}
			video = loaded
			videos[r.Unit.VideoID] = video
		}

		payload.Items = append(payload.Items, domain.ContextItem{
			Text: r.Unit.Text,
			Citation: domain.Citation{
				VideoID: r.Unit.VideoID,
				Start:   r.Unit.Start,
				End:     r.Unit.End,
				Title:   video.Title,
				URL:     video.URL,
			},
			Score:  r.Score,
			Reason: r.Reason,
		})
		payload.UsedTokens += r.Unit.TokenCount
	}

	return payload, nil
}

// dedupe collapses duplicate unit IDs, keeping the match entry over a
// neighbor entry and the higher score otherwise.
func dedupe(results []domain.Retrieved) []domain.Retrieved {
	best := make(map[string]int, len(results))
	out := make([]domain.Retrieved, 0, len(results))
	for _, r := range results {
		i, ok := best[r.Unit.ID]
		if !ok {
			best[r.Unit.ID] = len(out)
			out = append(out, r)
			continue
		}
		kept := out[i]
		if kept.Reason == domain.ReasonNeighbor && r.Reason == domain.ReasonMatch {
			out[i] = r
		} else if kept.Reason == r.Reason && r.Score > kept.Score {
			out[i] = r
		}
	}
	return out
}
