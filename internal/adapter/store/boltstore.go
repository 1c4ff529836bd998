package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"chanrag/internal/domain"
)

var (
	bucketVideos     = []byte("videos")
	bucketUnits      = []byte("units")
	bucketUnitText   = []byte("unit_text")
	bucketVectors    = []byte("vectors")
	bucketVideoUnits = []byte("video_units")
	bucketEntities   = []byte("entity_postings")
	bucketMeta       = []byte("meta")
)

// BoltStore persists index entries in bbolt and serves searches from an
// in-memory projection loaded at open. Writes go through bolt transactions
// first and swap the projection under the lock afterwards, so a concurrent
// reader sees either the old or the fully new entry for a unit, never a mix.
type BoltStore struct {
	db *bbolt.DB

	mu         sync.RWMutex
	entries    map[string]cacheEntry
	videoUnits map[string][]string // videoID -> unit IDs ordered by sequence
	published  map[string]time.Time
	generation uint64
}

type cacheEntry struct {
	vector   []float32
	videoID  string
	seq      int
	start    float64
	end      float64
	entities []string
}

type unitMeta struct {
	VideoID       string   `json:"video_id"`
	SequenceIndex int      `json:"sequence_index"`
	Start         float64  `json:"start"`
	End           float64  `json:"end"`
	TokenCount    int      `json:"token_count"`
	Entities      []string `json:"entities,omitempty"`
}

type videoMeta struct {
	Title       string  `json:"title"`
	URL         string  `json:"url,omitempty"`
	PublishedAt int64   `json:"published_at"`
	Duration    float64 `json:"duration"`
	LastSeen    int64   `json:"last_seen,omitempty"`
}

// NewBoltStore opens (or creates) the store at path and loads the in-memory
// projection. A store that fails its integrity check returns
// domain.ErrIndexCorruption and must be explicitly rebuilt before serving.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketVideos, bucketUnits, bucketUnitText, bucketVectors, bucketVideoUnits, bucketEntities, bucketMeta}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{
		db:         db,
		entries:    make(map[string]cacheEntry),
		videoUnits: make(map[string][]string),
		published:  make(map[string]time.Time),
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// load rebuilds the in-memory projection and verifies on-disk integrity:
// every vector must decode, belong to a known unit, and share one dimension.
func (s *BoltStore) load() error {
	dim := -1
	return s.db.View(func(tx *bbolt.Tx) error {
		units := tx.Bucket(bucketUnits)
		vectors := tx.Bucket(bucketVectors)

		err := vectors.ForEach(func(k, v []byte) error {
			var vec []float32
			if err := json.Unmarshal(v, &vec); err != nil {
				return fmt.Errorf("%w: undecodable vector for unit %s", domain.ErrIndexCorruption, k)
			}
			metaData := units.Get(k)
			if metaData == nil {
				return fmt.Errorf("%w: vector without unit metadata: %s", domain.ErrIndexCorruption, k)
			}
			var meta unitMeta
			if err := json.Unmarshal(metaData, &meta); err != nil {
				return fmt.Errorf("%w: undecodable unit metadata: %s", domain.ErrIndexCorruption, k)
			}
			if dim == -1 {
				dim = len(vec)
			} else if len(vec) != dim {
				return fmt.Errorf("%w: mixed vector dimensions (%d vs %d)", domain.ErrIndexCorruption, len(vec), dim)
			}
			s.entries[string(k)] = cacheEntry{
				vector:   vec,
				videoID:  meta.VideoID,
				seq:      meta.SequenceIndex,
				start:    meta.Start,
				end:      meta.End,
				entities: meta.Entities,
			}
			return nil
		})
		if err != nil {
			return err
		}

		if dim != -1 {
			if stored, ok := s.storedDimension(tx); ok && stored != dim {
				return fmt.Errorf("%w: meta dimension %d does not match vectors (%d)", domain.ErrIndexCorruption, stored, dim)
			}
		}

		err = tx.Bucket(bucketVideoUnits).ForEach(func(k, v []byte) error {
			var ids []string
			if err := json.Unmarshal(v, &ids); err != nil {
				return fmt.Errorf("%w: undecodable unit list for video %s", domain.ErrIndexCorruption, k)
			}
			s.videoUnits[string(k)] = ids
			return nil
		})
		if err != nil {
			return err
		}

		return tx.Bucket(bucketVideos).ForEach(func(k, v []byte) error {
			var meta videoMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("%w: undecodable video record %s", domain.ErrIndexCorruption, k)
			}
			s.published[string(k)] = time.Unix(meta.PublishedAt, 0)
			return nil
		})
	})
}

// Upsert adds or fully replaces entries by unit ID.
func (s *BoltStore) Upsert(entries []domain.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, e := range entries {
			if err := s.deleteUnitTx(tx, e.UnitID, false); err != nil {
				return err
			}
			if err := s.putEntryTx(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, e := range entries {
		s.cachePut(e)
	}
	s.generation++
	return nil
}

// ReplaceVideo atomically swaps all entries of a video. On failure the prior
// entries stay visible to queries.
func (s *BoltStore) ReplaceVideo(video domain.Video, entries []domain.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.VideoID != video.ID {
			return fmt.Errorf("entry %s does not belong to video %s", e.UnitID, video.ID)
		}
		ids = append(ids, e.UnitID)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, old := range s.videoUnits[video.ID] {
			// The video's unit list is rewritten below in the same tx.
			if err := s.deleteUnitTx(tx, old, false); err != nil {
				return err
			}
		}
		for _, e := range entries {
			if err := s.putEntryTx(tx, e); err != nil {
				return err
			}
		}
		if err := s.putVideoTx(tx, video); err != nil {
			return err
		}
		data, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketVideoUnits).Put([]byte(video.ID), data)
	})
	if err != nil {
		return err
	}

	for _, old := range s.videoUnits[video.ID] {
		delete(s.entries, old)
	}
	for _, e := range entries {
		s.cachePut(e)
	}
	s.videoUnits[video.ID] = ids
	s.published[video.ID] = video.PublishedAt
	s.generation++
	return nil
}

// Delete removes entries by unit ID.
func (s *BoltStore) Delete(unitIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, id := range unitIDs {
			if err := s.deleteUnitTx(tx, id, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range unitIDs {
		if e, ok := s.entries[id]; ok {
			s.videoUnits[e.videoID] = removeString(s.videoUnits[e.videoID], id)
			delete(s.entries, id)
		}
	}
	s.generation++
	return nil
}

// DeleteVideo removes the video record and every unit it owns.
func (s *BoltStore) DeleteVideo(videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, id := range s.videoUnits[videoID] {
			if err := s.deleteUnitTx(tx, id, true); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketVideoUnits).Delete([]byte(videoID)); err != nil {
			return err
		}
		return tx.Bucket(bucketVideos).Delete([]byte(videoID))
	})
	if err != nil {
		return err
	}

	for _, id := range s.videoUnits[videoID] {
		delete(s.entries, id)
	}
	delete(s.videoUnits, videoID)
	delete(s.published, videoID)
	s.generation++
	return nil
}

// Unit loads one entry by ID.
func (s *BoltStore) Unit(unitID string) (domain.IndexEntry, error) {
	var entry domain.IndexEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUnits).Get([]byte(unitID))
		if data == nil {
			return fmt.Errorf("unit not found: %s", unitID)
		}
		var meta unitMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		var vec []float32
		if raw := tx.Bucket(bucketVectors).Get([]byte(unitID)); raw != nil {
			if err := json.Unmarshal(raw, &vec); err != nil {
				return err
			}
		}
		entry = domain.IndexEntry{
			UnitID:        unitID,
			VideoID:       meta.VideoID,
			SequenceIndex: meta.SequenceIndex,
			Start:         meta.Start,
			End:           meta.End,
			TokenCount:    meta.TokenCount,
			Entities:      meta.Entities,
			Vector:        vec,
			Text:          string(tx.Bucket(bucketUnitText).Get([]byte(unitID))),
		}
		return nil
	})
	return entry, err
}

// Neighbors returns the entries at sequence index seq-1 and seq+1 within the
// same video, when they exist.
func (s *BoltStore) Neighbors(videoID string, seq int) ([]domain.IndexEntry, error) {
	var neighbors []domain.IndexEntry
	for _, adjacent := range []int{seq - 1, seq + 1} {
		if adjacent < 0 {
			continue
		}
		entry, err := s.Unit(domain.UnitID(videoID, adjacent))
		if err != nil {
			continue
		}
		neighbors = append(neighbors, entry)
	}
	return neighbors, nil
}

// Video loads one video record.
func (s *BoltStore) Video(videoID string) (domain.Video, error) {
	var video domain.Video
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketVideos).Get([]byte(videoID))
		if data == nil {
			return fmt.Errorf("video not found: %s", videoID)
		}
		var meta videoMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		video = videoFromMeta(videoID, meta)
		return nil
	})
	return video, err
}

// Videos lists all video records known to the index.
func (s *BoltStore) Videos() ([]domain.Video, error) {
	var videos []domain.Video
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVideos).ForEach(func(k, v []byte) error {
			var meta videoMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			videos = append(videos, videoFromMeta(string(k), meta))
			return nil
		})
	})
	sort.Slice(videos, func(i, j int) bool { return videos[i].ID < videos[j].ID })
	return videos, err
}

// Count returns the number of persisted entries.
func (s *BoltStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Generation increments on every write; cached query results keyed to an
// older generation are stale.
func (s *BoltStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// putEntryTx writes one entry's metadata, text, vector and entity postings.
func (s *BoltStore) putEntryTx(tx *bbolt.Tx, e domain.IndexEntry) error {
	meta := unitMeta{
		VideoID:       e.VideoID,
		SequenceIndex: e.SequenceIndex,
		Start:         e.Start,
		End:           e.End,
		TokenCount:    e.TokenCount,
		Entities:      e.Entities,
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketUnits).Put([]byte(e.UnitID), data); err != nil {
		return err
	}
	if err := tx.Bucket(bucketUnitText).Put([]byte(e.UnitID), []byte(e.Text)); err != nil {
		return err
	}
	vecData, err := json.Marshal(e.Vector)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketVectors).Put([]byte(e.UnitID), vecData); err != nil {
		return err
	}

	postings := tx.Bucket(bucketEntities)
	for _, entity := range e.Entities {
		var ids []string
		if raw := postings.Get([]byte(entity)); raw != nil {
			json.Unmarshal(raw, &ids)
		}
		if !containsString(ids, e.UnitID) {
			ids = append(ids, e.UnitID)
			sort.Strings(ids)
		}
		data, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		if err := postings.Put([]byte(entity), data); err != nil {
			return err
		}
	}
	return nil
}

// deleteUnitTx removes a unit's metadata, text, vector and postings. When
// updateVideoList is set the owning video's unit list is rewritten too.
func (s *BoltStore) deleteUnitTx(tx *bbolt.Tx, unitID string, updateVideoList bool) error {
	units := tx.Bucket(bucketUnits)
	data := units.Get([]byte(unitID))
	if data == nil {
		return nil
	}
	var meta unitMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}

	postings := tx.Bucket(bucketEntities)
	for _, entity := range meta.Entities {
		raw := postings.Get([]byte(entity))
		if raw == nil {
			continue
		}
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			continue
		}
		ids = removeString(ids, unitID)
		if len(ids) == 0 {
			if err := postings.Delete([]byte(entity)); err != nil {
				return err
			}
			continue
		}
		data, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		if err := postings.Put([]byte(entity), data); err != nil {
			return err
		}
	}

	if updateVideoList {
		videoUnits := tx.Bucket(bucketVideoUnits)
		if raw := videoUnits.Get([]byte(meta.VideoID)); raw != nil {
			var ids []string
			if err := json.Unmarshal(raw, &ids); err == nil {
				ids = removeString(ids, unitID)
				data, err := json.Marshal(ids)
				if err != nil {
					return err
				}
				if err := videoUnits.Put([]byte(meta.VideoID), data); err != nil {
					return err
				}
			}
		}
	}

	if err := units.Delete([]byte(unitID)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketUnitText).Delete([]byte(unitID)); err != nil {
		return err
	}
	return tx.Bucket(bucketVectors).Delete([]byte(unitID))
}

func (s *BoltStore) putVideoTx(tx *bbolt.Tx, video domain.Video) error {
	meta := videoMeta{
		Title:       video.Title,
		URL:         video.URL,
		PublishedAt: video.PublishedAt.Unix(),
		Duration:    video.Duration,
	}
	if !video.LastSeen.IsZero() {
		meta.LastSeen = video.LastSeen.Unix()
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketVideos).Put([]byte(video.ID), data)
}

func (s *BoltStore) cachePut(e domain.IndexEntry) {
	s.entries[e.UnitID] = cacheEntry{
		vector:   e.Vector,
		videoID:  e.VideoID,
		seq:      e.SequenceIndex,
		start:    e.Start,
		end:      e.End,
		entities: e.Entities,
	}
}

func videoFromMeta(id string, meta videoMeta) domain.Video {
	v := domain.Video{
		ID:          id,
		Title:       meta.Title,
		URL:         meta.URL,
		PublishedAt: time.Unix(meta.PublishedAt, 0),
		Duration:    meta.Duration,
	}
	if meta.LastSeen != 0 {
		v.LastSeen = time.Unix(meta.LastSeen, 0)
	}
	return v
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, x := range list {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
