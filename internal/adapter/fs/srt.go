package fs

import (
	"strconv"
	"strings"

	"chanrag/internal/domain"
)

// ParseSRT parses SRT subtitle text into caption segments. Consecutive text
// lines under one timestamp merge into a single segment.
//
//	1
//	00:00:00,000 --> 00:00:01,830
//	I'm happy to
//	have you here today.
func ParseSRT(text string) []domain.CaptionSegment {
	if text == "" {
		return nil
	}

	var segments []domain.CaptionSegment
	var current *domain.CaptionSegment

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isDigitOnly(line) {
			continue
		}
		if strings.Contains(line, "-->") {
			if current != nil {
				segments = append(segments, *current)
			}
			parts := strings.SplitN(line, "-->", 2)
			current = &domain.CaptionSegment{
				Start: parseSRTTime(strings.TrimSpace(parts[0])),
				End:   parseSRTTime(strings.TrimSpace(parts[1])),
			}
			continue
		}
		if current == nil {
			continue
		}
		if current.Text != "" {
			current.Text += " "
		}
		current.Text += line
	}
	if current != nil {
		segments = append(segments, *current)
	}

	return segments
}

// parseSRTTime converts "HH:MM:SS,mmm" to seconds. Malformed fields parse
// as zero.
func parseSRTTime(s string) float64 {
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0
	}
	hours, _ := strconv.ParseFloat(parts[0], 64)
	minutes, _ := strconv.ParseFloat(parts[1], 64)
	seconds, _ := strconv.ParseFloat(parts[2], 64)
	return hours*3600 + minutes*60 + seconds
}

func isDigitOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
