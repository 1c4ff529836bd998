package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// MockEmbedder produces deterministic unit-length vectors by hashing words
// into dimensions (a bag-of-words projection). Texts sharing words get
// higher cosine similarity, which is enough signal to exercise retrieval
// end to end without a model endpoint.
type MockEmbedder struct {
	dimension int
}

// NewMockEmbedder creates a mock embedder with the given dimension.
func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, e.dimension)
		for _, word := range mockWords(text) {
			h := fnv.New32a()
			h.Write([]byte(word))
			v[int(h.Sum32())%e.dimension]++
		}
		vectors[i] = Normalize(v)
	}
	return vectors, nil
}

func (e *MockEmbedder) Dimension() int { return e.dimension }

func (e *MockEmbedder) ModelName() string { return "mock" }

func mockWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
