package assign

import (
	"strings"
	"unicode"

	"cardsorter/internal/config"
	"cardsorter/internal/grid"
	"cardsorter/internal/textutil"
)

// Reason codes attached to every result.
const (
	ReasonDivertLowConfidence = "divert:low_confidence"
	reasonAlphaExact          = "alpha_exact:"
	reasonOverflow            = "overflow:"
)

// DefaultLetter is used when a name contains no usable letter.
const DefaultLetter = "A"

// Policy holds the assignment thresholds.
type Policy struct {
	// Threshold is the minimum confidence for alpha-exact routing.
	Threshold float64
	// NearFull is the occupancy ratio at which a slot is reported as nearly full.
	NearFull float64
}

// DefaultPolicy returns the stock thresholds (0.80 divert, 0.90 near full).
func DefaultPolicy() Policy {
	cfg := config.Default()
	return PolicyFromConfig(&cfg)
}

// PolicyFromConfig reads thresholds from the sorting section.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Threshold: cfg.Sorting.LowConfidenceThreshold,
		NearFull:  cfg.Sorting.NearFullThreshold,
	}
}

// Request is one identified item awaiting a slot.
type Request struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
}

// Result is the routing decision for one item.
type Result struct {
	Cell        string `json:"cell"`
	Reason      string `json:"reason"`
	FirstLetter string `json:"firstLetter"`
}

// AlphaExact builds the reason for a letter-routed item.
func AlphaExact(letter string) string { return reasonAlphaExact + letter }

// Overflow builds the reason for an item redirected by a full slot.
func Overflow(letter string) string { return reasonOverflow + letter }

// Diverted reports whether the item was routed away for low confidence.
func (r Result) Diverted() bool { return r.Reason == ReasonDivertLowConfidence }

// Overflowed reports whether a full slot redirected the item.
func (r Result) Overflowed() bool { return strings.HasPrefix(r.Reason, reasonOverflow) }

// FirstLetter returns the uppercased first letter of name after folding
// diacritics ("Éclair" -> "E"). Leading symbols and digits are skipped. A name
// without letters, or whose first letter lies outside A-Z ("Æther"), yields
// DefaultLetter.
//
// Folding is deliberate: an accented initial files beside its unaccented
// letter rather than going to the error slot as an unmapped letter, and
// rather than collapsing to DefaultLetter the way unfolded non A-Z letters do.
func FirstLetter(name string) string {
	for _, r := range textutil.StripMarks(name) {
		if !unicode.IsLetter(r) {
			continue
		}
		r = unicode.ToUpper(r)
		if r >= 'A' && r <= 'Z' {
			return string(r)
		}
		return DefaultLetter
	}
	return DefaultLetter
}

// Preview computes the would-be assignment without touching occupancy.
// Confidence is not range-checked; values below the threshold divert.
func Preview(name string, confidence float64, alphabet grid.AlphabetMap, policy Policy) Result {
	letter := FirstLetter(name)
	if confidence < policy.Threshold {
		return Result{Cell: alphabet.ErrorSlot(), Reason: ReasonDivertLowConfidence, FirstLetter: letter}
	}
	cell, ok := alphabet.Slot(rune(letter[0]))
	if !ok {
		cell = alphabet.ErrorSlot()
	}
	return Result{Cell: cell, Reason: AlphaExact(letter), FirstLetter: letter}
}
