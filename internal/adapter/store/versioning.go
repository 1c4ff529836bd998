package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the on-disk layout version. Increment on breaking
// changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyModelInfo     = []byte("embedding_model")
	keyRefreshState  = []byte("refresh_state")
)

// ModelInfo identifies the vector space the stored embeddings live in. A
// change in model or dimension invalidates every stored vector.
type ModelInfo struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

// RebuildCheck describes whether the store can serve with the configured
// embedding model or must be rebuilt first.
type RebuildCheck struct {
	NeedsRebuild bool
	Reason       string
}

// ModelInfo returns the stored embedding model identity, if any.
func (s *BoltStore) ModelInfo() (ModelInfo, bool, error) {
	var info ModelInfo
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyModelInfo)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &info); err != nil {
			return err
		}
		found = true
		return nil
	})
	return info, found, err
}

// SetModelInfo records the embedding model identity and schema version.
func (s *BoltStore) SetModelInfo(info ModelInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := b.Put(keyModelInfo, data); err != nil {
			return err
		}
		version, err := json.Marshal(CurrentSchemaVersion)
		if err != nil {
			return err
		}
		return b.Put(keySchemaVersion, version)
	})
}

// CheckModel compares the configured model against the stored one. Mixing
// vector spaces silently is never allowed; a mismatch demands a full rebuild.
func (s *BoltStore) CheckModel(configured ModelInfo) (*RebuildCheck, error) {
	stored, found, err := s.ModelInfo()
	if err != nil {
		return nil, err
	}
	if !found {
		return &RebuildCheck{}, nil
	}
	if stored.Name != configured.Name {
		return &RebuildCheck{
			NeedsRebuild: true,
			Reason:       fmt.Sprintf("embedding model changed (%s -> %s)", stored.Name, configured.Name),
		}, nil
	}
	if stored.Dimension != configured.Dimension {
		return &RebuildCheck{
			NeedsRebuild: true,
			Reason:       fmt.Sprintf("embedding dimension changed (%d -> %d)", stored.Dimension, configured.Dimension),
		}, nil
	}
	return &RebuildCheck{}, nil
}

// RequireModel refuses to serve when the configured embedding model does not
// match the one the index was built with. Without this gate a query would be
// embedded in the new model's space and scored against old-space vectors with
// no error surfacing.
func (s *BoltStore) RequireModel(configured ModelInfo) error {
	check, err := s.CheckModel(configured)
	if err != nil {
		return err
	}
	if check.NeedsRebuild {
		return fmt.Errorf("index incompatible with configured embedding model: %s", check.Reason)
	}
	return nil
}

func (s *BoltStore) storedDimension(tx *bbolt.Tx) (int, bool) {
	data := tx.Bucket(bucketMeta).Get(keyModelInfo)
	if data == nil {
		return 0, false
	}
	var info ModelInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return 0, false
	}
	return info.Dimension, true
}

// Clear removes all indexed data for a full rebuild. Refresh state and the
// meta bucket survive except for the model identity, which the rebuild
// rewrites.
func (s *BoltStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketVideos, bucketUnits, bucketUnitText, bucketVectors, bucketVideoUnits, bucketEntities}
		for _, name := range buckets {
			b := tx.Bucket(name)
			c := b.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		return tx.Bucket(bucketMeta).Delete(keyModelInfo)
	})
	if err != nil {
		return err
	}

	s.entries = make(map[string]cacheEntry)
	s.videoUnits = make(map[string][]string)
	s.published = make(map[string]time.Time)
	s.generation++
	return nil
}

// RefreshState is the persisted auto/manual refresh switch. It influences
// ingestion triggering only, never the query path.
type RefreshState struct {
	Mode         string    `json:"mode"` // "auto" or "manual"
	IntervalDays int       `json:"interval_days"`
	LastRefresh  time.Time `json:"last_refresh"`
}

// RefreshState returns the persisted refresh switch, if set.
func (s *BoltStore) RefreshState() (RefreshState, bool, error) {
	var state RefreshState
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyRefreshState)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &state); err != nil {
			return err
		}
		found = true
		return nil
	})
	return state, found, err
}

// SetRefreshState persists the refresh switch.
func (s *BoltStore) SetRefreshState(state RefreshState) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyRefreshState, data)
	})
}
