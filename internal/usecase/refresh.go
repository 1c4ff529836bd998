package usecase

import (
	"fmt"
	"time"

	"chanrag/internal/adapter/store"
)

// Refresh modes.
const (
	RefreshAuto   = "auto"
	RefreshManual = "manual"
)

// RefreshManager owns the persisted auto/manual refresh switch. In auto mode
// an ingestion run is due once the configured interval has elapsed since the
// last one; in manual mode ingestion only runs when asked.
type RefreshManager struct {
	store *store.BoltStore
}

// NewRefreshManager wraps the store's persisted refresh state, seeding it
// from the given defaults on first run.
func NewRefreshManager(s *store.BoltStore, defaultMode string, defaultIntervalDays int) (*RefreshManager, error) {
	m := &RefreshManager{store: s}
	_, found, err := s.RefreshState()
	if err != nil {
		return nil, err
	}
	if !found {
		if defaultMode == "" {
			defaultMode = RefreshManual
		}
		if defaultIntervalDays <= 0 {
			defaultIntervalDays = 1
		}
		if err := m.SetMode(defaultMode, defaultIntervalDays); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// State returns the current refresh state.
func (m *RefreshManager) State() (store.RefreshState, error) {
	state, _, err := m.store.RefreshState()
	return state, err
}

// SetMode switches between auto and manual refresh. Interval applies to auto
// mode; pass zero to keep the stored interval.
func (m *RefreshManager) SetMode(mode string, intervalDays int) error {
	if mode != RefreshAuto && mode != RefreshManual {
		return fmt.Errorf("unknown refresh mode %q", mode)
	}
	state, _, err := m.store.RefreshState()
	if err != nil {
		return err
	}
	state.Mode = mode
	if intervalDays > 0 {
		state.IntervalDays = intervalDays
	}
	if state.IntervalDays <= 0 {
		state.IntervalDays = 1
	}
	return m.store.SetRefreshState(state)
}

// Toggle flips between auto and manual and returns the new mode.
func (m *RefreshManager) Toggle() (string, error) {
	state, _, err := m.store.RefreshState()
	if err != nil {
		return "", err
	}
	next := RefreshAuto
	if state.Mode == RefreshAuto {
		next = RefreshManual
	}
	if err := m.SetMode(next, 0); err != nil {
		return "", err
	}
	return next, nil
}

// ShouldRefresh reports whether an automatic ingestion run is due at now.
func (m *RefreshManager) ShouldRefresh(now time.Time) (bool, error) {
	state, found, err := m.store.RefreshState()
	if err != nil {
		return false, err
	}
	if !found || state.Mode != RefreshAuto {
		return false, nil
	}
	if state.LastRefresh.IsZero() {
		return true, nil
	}
	interval := time.Duration(state.IntervalDays) * 24 * time.Hour
	return now.Sub(state.LastRefresh) >= interval, nil
}

// MarkRefreshed records a completed ingestion run at now.
func (m *RefreshManager) MarkRefreshed(now time.Time) error {
	state, _, err := m.store.RefreshState()
	if err != nil {
		return err
	}
	state.LastRefresh = now
	return m.store.SetRefreshState(state)
}
