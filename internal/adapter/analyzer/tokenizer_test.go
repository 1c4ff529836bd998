package analyzer

import (
	"reflect"
	"testing"
)

func TestWords(t *testing.T) {
	tokenizer := NewTokenizer()

	words := tokenizer.Words("we use FAISS, for search!")
	expected := []string{"we", "use", "FAISS", "for", "search"}
	if !reflect.DeepEqual(words, expected) {
		t.Errorf("expected %v, got %v", expected, words)
	}
}

func TestWordsEmpty(t *testing.T) {
	tokenizer := NewTokenizer()

	if words := tokenizer.Words(""); len(words) != 0 {
		t.Errorf("expected no words, got %v", words)
	}
	if words := tokenizer.Words("  ...  "); len(words) != 0 {
		t.Errorf("expected no words, got %v", words)
	}
}

func TestCountTokens(t *testing.T) {
	tokenizer := NewTokenizer()

	tests := []struct {
		text     string
		expected int
	}{
		{"", 0},
		{"intro to tools", 3},
		{"we use FAISS for search", 6},
		{"and sentence transformers for embeddings", 6},
	}

	for _, tt := range tests {
		if got := tokenizer.CountTokens(tt.text); got != tt.expected {
			t.Errorf("CountTokens(%q) = %d, expected %d", tt.text, got, tt.expected)
		}
	}
}

func TestIsStopword(t *testing.T) {
	tokenizer := NewTokenizer()

	if !tokenizer.IsStopword("the") {
		t.Error("expected 'the' to be a stopword")
	}
	if !tokenizer.IsStopword("The") {
		t.Error("expected stopword check to be case-insensitive")
	}
	if tokenizer.IsStopword("fermentation") {
		t.Error("did not expect 'fermentation' to be a stopword")
	}
}

func TestEndsSentence(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
	}{
		{"this ends here.", true},
		{"does it end here?", true},
		{"it ends here!  ", true},
		{"no ending", false},
		{"trailing comma,", false},
	}

	for _, tt := range tests {
		if got := EndsSentence(tt.text); got != tt.expected {
			t.Errorf("EndsSentence(%q) = %v, expected %v", tt.text, got, tt.expected)
		}
	}
}
