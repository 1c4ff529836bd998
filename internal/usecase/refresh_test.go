package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRefreshManagerSeedsDefaults(t *testing.T) {
	s := newTestStore(t)

	manager, err := NewRefreshManager(s, RefreshAuto, 7)
	require.NoError(t, err)

	state, err := manager.State()
	require.NoError(t, err)
	require.Equal(t, RefreshAuto, state.Mode)
	require.Equal(t, 7, state.IntervalDays)
	require.True(t, state.LastRefresh.IsZero())
}

func TestRefreshManagerKeepsPersistedState(t *testing.T) {
	s := newTestStore(t)

	first, err := NewRefreshManager(s, RefreshManual, 1)
	require.NoError(t, err)
	require.NoError(t, first.SetMode(RefreshAuto, 3))

	// A second manager with different defaults must not overwrite the
	// persisted switch.
	second, err := NewRefreshManager(s, RefreshManual, 1)
	require.NoError(t, err)
	state, err := second.State()
	require.NoError(t, err)
	require.Equal(t, RefreshAuto, state.Mode)
	require.Equal(t, 3, state.IntervalDays)
}

func TestRefreshManagerRejectsUnknownMode(t *testing.T) {
	s := newTestStore(t)
	manager, err := NewRefreshManager(s, RefreshManual, 1)
	require.NoError(t, err)

	require.Error(t, manager.SetMode("sometimes", 0))
}

func TestRefreshManagerToggle(t *testing.T) {
	s := newTestStore(t)
	manager, err := NewRefreshManager(s, RefreshManual, 1)
	require.NoError(t, err)

	mode, err := manager.Toggle()
	require.NoError(t, err)
	require.Equal(t, RefreshAuto, mode)

	mode, err = manager.Toggle()
	require.NoError(t, err)
	require.Equal(t, RefreshManual, mode)
}

func TestShouldRefresh(t *testing.T) {
	s := newTestStore(t)
	manager, err := NewRefreshManager(s, RefreshAuto, 1)
	require.NoError(t, err)

	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	// Never refreshed: due immediately.
	due, err := manager.ShouldRefresh(now)
	require.NoError(t, err)
	require.True(t, due)

	require.NoError(t, manager.MarkRefreshed(now))

	due, err = manager.ShouldRefresh(now.Add(12 * time.Hour))
	require.NoError(t, err)
	require.False(t, due, "half the interval has passed")

	due, err = manager.ShouldRefresh(now.Add(48 * time.Hour))
	require.NoError(t, err)
	require.True(t, due)
}

func TestShouldRefreshManualMode(t *testing.T) {
	s := newTestStore(t)
	manager, err := NewRefreshManager(s, RefreshManual, 1)
	require.NoError(t, err)

	due, err := manager.ShouldRefresh(time.Now())
	require.NoError(t, err)
	require.False(t, due, "manual mode never auto-refreshes")
}

func TestMarkRefreshedKeepsMode(t *testing.T) {
	s := newTestStore(t)
	manager, err := NewRefreshManager(s, RefreshAuto, 5)
	require.NoError(t, err)

	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, manager.MarkRefreshed(now))

	state, err := manager.State()
	require.NoError(t, err)
	require.Equal(t, RefreshAuto, state.Mode)
	require.Equal(t, 5, state.IntervalDays)
	require.True(t, state.LastRefresh.Equal(now))
}
