package store

import (
	"strings"
	"testing"
	"time"

	"chanrag/internal/domain"
)

func TestCheckModelFreshStore(t *testing.T) {
	s, _ := newTestStore(t)

	check, err := s.CheckModel(ModelInfo{Name: "text-embedding-3-small", Dimension: 1536})
	if err != nil {
		t.Fatal(err)
	}
	if check.NeedsRebuild {
		t.Errorf("a fresh store has no model to conflict with: %+v", check)
	}
}

func TestCheckModelMismatch(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.SetModelInfo(ModelInfo{Name: "model-a", Dimension: 768}); err != nil {
		t.Fatal(err)
	}

	check, err := s.CheckModel(ModelInfo{Name: "model-a", Dimension: 768})
	if err != nil {
		t.Fatal(err)
	}
	if check.NeedsRebuild {
		t.Errorf("matching model must not trigger a rebuild: %+v", check)
	}

	check, err = s.CheckModel(ModelInfo{Name: "model-b", Dimension: 768})
	if err != nil {
		t.Fatal(err)
	}
	if !check.NeedsRebuild {
		t.Error("model name change must trigger a rebuild")
	}

	check, err = s.CheckModel(ModelInfo{Name: "model-a", Dimension: 1024})
	if err != nil {
		t.Fatal(err)
	}
	if !check.NeedsRebuild {
		t.Error("dimension change must trigger a rebuild")
	}
}

func TestRequireModelRefusesChangedModel(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.SetModelInfo(ModelInfo{Name: "model-a", Dimension: 768}); err != nil {
		t.Fatal(err)
	}

	if err := s.RequireModel(ModelInfo{Name: "model-a", Dimension: 768}); err != nil {
		t.Errorf("matching model must serve: %v", err)
	}

	err := s.RequireModel(ModelInfo{Name: "model-b", Dimension: 768})
	if err == nil {
		t.Fatal("a changed model must refuse to serve instead of mixing vector spaces")
	}
	if !strings.Contains(err.Error(), "model-b") {
		t.Errorf("refusal should name the offending model: %v", err)
	}

	err = s.RequireModel(ModelInfo{Name: "model-a", Dimension: 1024})
	if err == nil {
		t.Fatal("a changed dimension must refuse to serve")
	}
}

func TestRequireModelFreshStore(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.RequireModel(ModelInfo{Name: "model-a", Dimension: 768}); err != nil {
		t.Errorf("a fresh store has no model to conflict with: %v", err)
	}
}

func TestClearWipesDataKeepsRefreshState(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.ReplaceVideo(testVideo("v1", time.Now()), []domain.IndexEntry{
		testEntry("v1", 0, []float32{1, 0, 0}, "faiss"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetModelInfo(ModelInfo{Name: "model-a", Dimension: 3}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRefreshState(RefreshState{Mode: "auto", IntervalDays: 7}); err != nil {
		t.Fatal(err)
	}

	before := s.Generation()
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}

	count, _ := s.Count()
	if count != 0 {
		t.Errorf("expected empty store after clear, count = %d", count)
	}
	if _, err := s.Video("v1"); err == nil {
		t.Error("video records must be cleared")
	}
	if _, found, _ := s.ModelInfo(); found {
		t.Error("model identity must be cleared so the rebuild rewrites it")
	}
	if s.Generation() == before {
		t.Error("clear must advance the generation")
	}

	state, found, err := s.RefreshState()
	if err != nil {
		t.Fatal(err)
	}
	if !found || state.Mode != "auto" || state.IntervalDays != 7 {
		t.Errorf("refresh state must survive a clear: %+v found=%v", state, found)
	}
}

func TestRefreshStateRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	if _, found, _ := s.RefreshState(); found {
		t.Fatal("fresh store should have no refresh state")
	}

	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SetRefreshState(RefreshState{Mode: "manual", IntervalDays: 1, LastRefresh: now}); err != nil {
		t.Fatal(err)
	}

	state, found, err := s.RefreshState()
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected refresh state to be present")
	}
	if state.Mode != "manual" || state.IntervalDays != 1 || !state.LastRefresh.Equal(now) {
		t.Errorf("unexpected state: %+v", state)
	}
}
