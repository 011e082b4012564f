package textutil

import (
	"math"
	"strings"
)

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a word-level fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	return newFingerprint(Tokenize(text))
}

// NewShingleFingerprint creates a fingerprint from overlapping character
// n-grams of the normalized text. Short OCR'd names with a misread glyph
// still share most of their shingles with the correct name.
func NewShingleFingerprint(text string, n int) *Fingerprint {
	if n <= 0 {
		n = 3
	}
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	padded := []rune(" " + normalized + " ")
	if len(padded) <= n {
		return newFingerprint([]string{string(padded)})
	}
	shingles := make([]string, 0, len(padded)-n+1)
	for i := 0; i+n <= len(padded); i++ {
		shingles = append(shingles, string(padded[i:i+n]))
	}
	return newFingerprint(shingles)
}

func newFingerprint(terms []string) *Fingerprint {
	if len(terms) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(terms))
	for _, term := range terms {
		counts[term]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{tokens: counts, norm: math.Sqrt(norm)}
}

// Tokenize normalizes text and splits it into tokens of at least two characters.
func Tokenize(text string) []string {
	fields := strings.Fields(Normalize(text))
	terms := make([]string, 0, len(fields))
	for _, token := range fields {
		if len([]rune(token)) < 2 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenCount returns the number of unique tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}
