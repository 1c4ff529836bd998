package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"chanrag/internal/domain"
)

func seedSearchStore(t *testing.T) *BoltStore {
	t.Helper()
	s, _ := newTestStore(t)

	older := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := s.ReplaceVideo(testVideo("v1", older), []domain.IndexEntry{
		testEntry("v1", 0, []float32{1, 0, 0}, "faiss"),
		testEntry("v1", 1, []float32{0.9, 0.1, 0}, "faiss", "search"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceVideo(testVideo("v2", newer), []domain.IndexEntry{
		testEntry("v2", 0, []float32{0, 1, 0}, "baking"),
		testEntry("v2", 1, []float32{0, 0.9, 0.1}, "baking", "sourdough"),
	}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSearchRanksBySimilarity(t *testing.T) {
	s := seedSearchStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 2, domain.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].UnitID != "v1:0000" {
		t.Errorf("expected exact match first, got %s", results[0].UnitID)
	}
	if results[1].UnitID != "v1:0001" {
		t.Errorf("expected next-closest second, got %s", results[1].UnitID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results must be ordered by descending score")
	}
}

func TestSearchTieBreaksTowardNewerVideo(t *testing.T) {
	s, _ := newTestStore(t)

	older := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.ReplaceVideo(testVideo("v1", older), []domain.IndexEntry{
		testEntry("v1", 0, []float32{1, 0, 0}),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceVideo(testVideo("v2", newer), []domain.IndexEntry{
		testEntry("v2", 0, []float32{1, 0, 0}),
	}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 2, domain.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].UnitID != "v2:0000" {
		t.Errorf("equal scores should prefer the newer video, got %s first", results[0].UnitID)
	}
}

func TestSearchEntityFilter(t *testing.T) {
	s := seedSearchStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 2, domain.Filters{
		Entities: []string{"baking"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		entry, err := s.Unit(r.UnitID)
		if err != nil {
			t.Fatal(err)
		}
		if entry.VideoID != "v2" {
			t.Errorf("entity filter leaked unit %s", r.UnitID)
		}
	}
}

func TestSearchVideoFilter(t *testing.T) {
	s := seedSearchStore(t)

	results, err := s.Search(context.Background(), []float32{0, 1, 0}, 2, domain.Filters{
		VideoIDs: []string{"v1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		entry, _ := s.Unit(r.UnitID)
		if entry.VideoID != "v1" {
			t.Errorf("video filter leaked unit %s", r.UnitID)
		}
	}
}

func TestSearchDateFilter(t *testing.T) {
	s := seedSearchStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 4, domain.Filters{
		After: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	partial := errors.Is(err, domain.ErrPartialResult)
	if err != nil && !partial {
		t.Fatal(err)
	}
	for _, r := range results {
		entry, _ := s.Unit(r.UnitID)
		if entry.VideoID != "v2" {
			t.Errorf("date filter leaked unit %s", r.UnitID)
		}
	}
}

func TestSearchPartialResult(t *testing.T) {
	s := seedSearchStore(t)

	// Only two units carry the "faiss" entity; asking for five must
	// surface all of them alongside the partial-result signal.
	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 5, domain.Filters{
		Entities: []string{"faiss"},
	})
	if !errors.Is(err, domain.ErrPartialResult) {
		t.Fatalf("expected ErrPartialResult, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("partial result must still carry all qualifying entries, got %d", len(results))
	}
}

func TestSearchUnfilteredNeverPartial(t *testing.T) {
	s := seedSearchStore(t)

	_, err := s.Search(context.Background(), []float32{1, 0, 0}, 100, domain.Filters{})
	if err != nil {
		t.Fatalf("an unfiltered search shorter than topK is not partial: %v", err)
	}
}

func TestSearchCancelledContext(t *testing.T) {
	s := seedSearchStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Search(ctx, []float32{1, 0, 0}, 2, domain.Filters{}); err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestLookupByFilter(t *testing.T) {
	s := seedSearchStore(t)

	ids, err := s.LookupByFilter(domain.Filters{Entities: []string{"sourdough"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "v2:0001" {
		t.Errorf("expected [v2:0001], got %v", ids)
	}

	ids, err = s.LookupByFilter(domain.Filters{VideoIDs: []string{"v1"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("expected both v1 units, got %v", ids)
	}
}

func TestSearchZeroTopK(t *testing.T) {
	s := seedSearchStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 0, domain.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Errorf("expected no results for topK=0, got %v", results)
	}
}
