package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return min(dot/(a.norm*b.norm), 1)
}

// TokenOverlap returns the share of distinct query tokens that also appear in
// reference (0..1). It is asymmetric: noisy extra words in reference do not
// lower the score.
func TokenOverlap(query, reference string) float64 {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}
	refTokens := Tokenize(reference)
	if len(refTokens) == 0 {
		return 0
	}
	refSet := make(map[string]struct{}, len(refTokens))
	for _, token := range refTokens {
		refSet[token] = struct{}{}
	}
	seen := make(map[string]struct{}, len(queryTokens))
	var hits int
	for _, token := range queryTokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		if _, ok := refSet[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(seen))
}
