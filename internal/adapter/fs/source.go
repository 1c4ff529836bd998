package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"chanrag/internal/domain"
)

// Source discovers transcript files under a data directory and turns them
// into video records. Two shapes are accepted: JSON files produced by the
// ingestion collaborator and SRT caption sidecars (whatever transcribed the
// audio, the chunker sees the same caption-segment shape).
type Source struct {
	root     string
	includes []string
	excludes []string
}

// NewSource creates a source over root with doublestar include/exclude
// patterns.
func NewSource(root string, includes, excludes []string) *Source {
	if len(includes) == 0 {
		includes = []string{"**/*.json", "**/*.srt"}
	}
	return &Source{
		root:     root,
		includes: includes,
		excludes: excludes,
	}
}

// videoFile is the on-disk JSON shape, matching the ingestion collaborator's
// output fields.
type videoFile struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	URL         string        `json:"url"`
	PublishedAt string        `json:"published_at"`
	Duration    float64       `json:"duration"`
	Transcript  []segmentFile `json:"transcript"`
}

type segmentFile struct {
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
	Text  string  `json:"text"`
}

// Videos returns all discoverable video records, ordered by ID. Videos whose
// transcript files are empty come back with zero captions; the ingest
// pipeline reports those as missing-transcript rather than dropping them.
func (s *Source) Videos() ([]domain.Video, error) {
	paths, err := s.walk()
	if err != nil {
		return nil, err
	}

	var videos []domain.Video
	for _, path := range paths {
		var video domain.Video
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			video, err = s.loadJSON(path)
		case ".srt":
			video, err = s.loadSRT(path)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		videos = append(videos, video)
	}

	sort.Slice(videos, func(i, j int) bool { return videos[i].ID < videos[j].ID })
	return videos, nil
}

func (s *Source) walk() ([]string, error) {
	var paths []string

	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if s.matches(s.excludes, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if s.matches(s.includes, rel) && !s.matches(s.excludes, rel) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func (s *Source) matches(patterns []string, path string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (s *Source) loadJSON(path string) (domain.Video, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Video{}, err
	}

	var file videoFile
	if err := json.Unmarshal(data, &file); err != nil {
		return domain.Video{}, err
	}

	id := file.ID
	if id == "" {
		id = videoIDFromPath(path)
	}
	video := domain.Video{
		ID:       id,
		Title:    file.Title,
		URL:      file.URL,
		Duration: file.Duration,
	}
	if file.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, file.PublishedAt); err == nil {
			video.PublishedAt = t
		}
	}
	for _, seg := range file.Transcript {
		video.Captions = append(video.Captions, domain.CaptionSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return video, nil
}

func (s *Source) loadSRT(path string) (domain.Video, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Video{}, err
	}

	id := videoIDFromPath(path)
	captions := ParseSRT(string(data))
	video := domain.Video{
		ID:       id,
		Title:    id,
		Captions: captions,
	}
	if n := len(captions); n > 0 {
		video.Duration = captions[n-1].End
	}
	return video, nil
}

func videoIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
