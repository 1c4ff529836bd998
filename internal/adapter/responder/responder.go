package responder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"chanrag/internal/domain"
)

// Responder renders a context payload into a cited prose answer. It is the
// fallback used when no external answer generator is wired; the citations it
// prints carry the exact (video, timestamp-span) anchors from the payload.
type Responder struct {
	maxPassages      int
	maxVideos        int
	snippetsPerVideo int
}

// New creates a responder limiting output to the top passages, videos and
// snippets.
func New() *Responder {
	return &Responder{maxPassages: 3, maxVideos: 3, snippetsPerVideo: 2}
}

// Generate composes a source-referenced answer from the payload.
func (r *Responder) Generate(ctx context.Context, question string, payload domain.ContextPayload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(payload.Items) == 0 {
		return "I couldn't find any relevant information about that topic in the channel's content.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on the channel's content, here's what I found about %q:\n\n", question)

	passages := 0
	for _, item := range payload.Items {
		if item.Reason != domain.ReasonMatch {
			continue
		}
		b.WriteString(strings.TrimSpace(item.Text))
		b.WriteString("\n\n")
		passages++
		if passages == r.maxPassages {
			break
		}
	}

	b.WriteString("Sources:\n")
	for _, group := range r.groupByVideo(payload.Items) {
		for i, item := range group {
			if i >= r.snippetsPerVideo {
				break
			}
			cite := item.Citation
			title := cite.Title
			if title == "" {
				title = cite.VideoID
			}
			fmt.Fprintf(&b, "- %s at %s: %s\n", title, FormatTimestamp(cite.Start), excerpt(item.Text, 150))
			if cite.URL != "" {
				fmt.Fprintf(&b, "  Link: %s&t=%d\n", cite.URL, int(cite.Start))
			}
		}
	}

	if payload.Truncated {
		fmt.Fprintf(&b, "\n(%d additional passages were found but did not fit the context window.)\n", payload.Dropped)
	}

	return b.String(), nil
}

// groupByVideo buckets items per video, ordered by each video's best score.
func (r *Responder) groupByVideo(items []domain.ContextItem) [][]domain.ContextItem {
	byVideo := make(map[string][]domain.ContextItem)
	var order []string
	for _, item := range items {
		id := item.Citation.VideoID
		if _, seen := byVideo[id]; !seen {
			order = append(order, id)
		}
		byVideo[id] = append(byVideo[id], item)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return bestScore(byVideo[order[i]]) > bestScore(byVideo[order[j]])
	})
	if len(order) > r.maxVideos {
		order = order[:r.maxVideos]
	}

	groups := make([][]domain.ContextItem, 0, len(order))
	for _, id := range order {
		group := byVideo[id]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Score > group[j].Score })
		groups = append(groups, group)
	}
	return groups
}

func bestScore(items []domain.ContextItem) float64 {
	best := items[0].Score
	for _, item := range items[1:] {
		if item.Score > best {
			best = item.Score
		}
	}
	return best
}

// FormatTimestamp renders seconds as M:SS.
func FormatTimestamp(seconds float64) string {
	minutes := int(seconds) / 60
	remaining := int(seconds) % 60
	return fmt.Sprintf("%d:%02d", minutes, remaining)
}

// excerpt trims text to at most n bytes, backing up to a rune boundary so a
// multi-byte character is never split.
func excerpt(text string, n int) string {
	text = strings.TrimSpace(text)
	if len(text) <= n {
		return text
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
