package analyzer

import (
	"sort"
	"strings"
	"unicode"
)

// Extraction modes.
const (
	ModeVocabulary = "vocabulary"
	ModeHeuristic  = "heuristic"
)

// EntityExtractor tags text with normalized entity mentions. In vocabulary
// mode only configured entities (matched by canonical name or alias) are
// recognized; heuristic mode additionally picks up capitalized spans and long
// content words. Extraction is pure, so re-running on identical text yields
// an identical set.
type EntityExtractor struct {
	mode      string
	tokenizer *Tokenizer
	// alias (lowercase) -> canonical entity
	aliases map[string]string
}

// NewEntityExtractor creates an extractor. vocabulary maps canonical entity
// names to their aliases; the canonical name itself always matches.
func NewEntityExtractor(mode string, vocabulary map[string][]string, tokenizer *Tokenizer) *EntityExtractor {
	aliases := make(map[string]string)
	for canonical, alts := range vocabulary {
		aliases[strings.ToLower(canonical)] = canonical
		for _, alt := range alts {
			aliases[strings.ToLower(alt)] = canonical
		}
	}
	if mode != ModeVocabulary {
		mode = ModeHeuristic
	}
	return &EntityExtractor{
		mode:      mode,
		tokenizer: tokenizer,
		aliases:   aliases,
	}
}

// Extract returns the sorted, deduplicated entity set for the text.
func (e *EntityExtractor) Extract(text string) ([]string, error) {
	found := make(map[string]struct{})

	words := e.tokenizer.Words(text)
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}

	// Vocabulary matches, including multi-word aliases up to three words.
	for i := range lower {
		for n := 3; n >= 1; n-- {
			if i+n > len(lower) {
				continue
			}
			phrase := strings.Join(lower[i:i+n], " ")
			if canonical, ok := e.aliases[phrase]; ok {
				found[canonical] = struct{}{}
			}
		}
	}

	if e.mode == ModeHeuristic {
		e.extractHeuristic(words, found)
	}

	entities := make([]string, 0, len(found))
	for ent := range found {
		entities = append(entities, ent)
	}
	sort.Strings(entities)
	return entities, nil
}

// extractHeuristic adds capitalized spans and distinctive long words. Spans
// are runs of capitalized words ("Sentence Transformers"); single capitalized
// stopwords and sentence-initial noise are filtered by the stopword list.
func (e *EntityExtractor) extractHeuristic(words []string, found map[string]struct{}) {
	var span []string
	flush := func() {
		if len(span) > 0 {
			found[strings.ToLower(strings.Join(span, " "))] = struct{}{}
			span = nil
		}
	}

	for _, w := range words {
		if isCapitalized(w) && !e.tokenizer.IsStopword(w) {
			span = append(span, w)
			continue
		}
		flush()
		// Long lowercase content words are weak entity signals but keep
		// recall up when vocabulary is not configured.
		if len(w) > 6 && !e.tokenizer.IsStopword(w) {
			found[strings.ToLower(w)] = struct{}{}
		}
	}
	flush()
}

func isCapitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}
