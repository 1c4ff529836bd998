package port

// EntityExtractor tags text with normalized entity mentions.
type EntityExtractor interface {
	// Extract returns the deduplicated, case-folded, canonicalized entity set
	// for the text, sorted for stable output. Re-running on identical text
	// yields an identical set.
	Extract(text string) ([]string, error)
}
