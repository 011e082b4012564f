// Package textutil provides name normalization and fuzzy-match primitives for
// card identification.
//
// Normalize strips diacritics (NFKD plus mark removal via golang.org/x/text),
// lowercases, and turns punctuation into spaces. Fingerprints are
// term-frequency vectors over words or character shingles, compared with
// cosine similarity.
package textutil
