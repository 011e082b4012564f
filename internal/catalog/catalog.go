package catalog

import (
	"context"
	"slices"
	"strings"

	"cardsorter/internal/config"
	"cardsorter/internal/textutil"
)

// Scoring weights for the combined 0..100 score.
const (
	nameWeight      = 0.75
	oracleWeight    = 0.20
	collectorWeight = 0.05

	collectorNameMismatch = 85.0
	shingleSize           = 3
	defaultTopN           = 8
)

// Method records which matching stage produced the best card.
type Method string

const (
	MethodNone      Method = "none"
	MethodExact     Method = "exact"
	MethodCollector Method = "collector"
	MethodFuzzy     Method = "fuzzy"
)

// Query is the OCR output for one card, keyed by region.
type Query struct {
	Name      string `json:"name"`
	Oracle    string `json:"oracle,omitempty"`
	Collector string `json:"collector,omitempty"`
}

// Candidate is one scored card.
type Candidate struct {
	Card           Card    `json:"card"`
	NameScore      float64 `json:"nameScore"`
	OracleScore    float64 `json:"oracleScore"`
	CollectorScore float64 `json:"collectorScore"`
	Total          float64 `json:"total"`
}

// Identification is the outcome of Identify.
type Identification struct {
	Best       *Card       `json:"best,omitempty"`
	Score      float64     `json:"score"`
	Method     Method      `json:"method"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Confidence maps the 0..100 score onto 0..1.
func (id Identification) Confidence() float64 {
	return min(1, max(0, id.Score/100))
}

// Matched reports whether a card was accepted.
func (id Identification) Matched() bool {
	return id.Best != nil
}

// Name returns the matched card name, or fallback when nothing matched.
func (id Identification) Name(fallback string) string {
	if id.Best != nil && id.Best.Name != "" {
		return id.Best.Name
	}
	return strings.TrimSpace(fallback)
}

type entry struct {
	card     Card
	norm     string
	shingles *textutil.Fingerprint
}

// Options tunes matching.
type Options struct {
	// MinScore is the lowest total accepted as a match.
	MinScore float64
	// TopN bounds the fuzzy name candidates refined by rules text.
	TopN int
}

// Catalog is an immutable, indexed card list.
type Catalog struct {
	entries  []entry
	byName   map[string][]int
	names    []string
	prints   map[string]*textutil.Fingerprint
	minScore float64
	topN     int
}

// New indexes cards for matching.
func New(cards []Card, opts Options) *Catalog {
	if opts.TopN <= 0 {
		opts.TopN = defaultTopN
	}
	c := &Catalog{
		entries:  make([]entry, 0, len(cards)),
		byName:   make(map[string][]int),
		prints:   make(map[string]*textutil.Fingerprint),
		minScore: opts.MinScore,
		topN:     opts.TopN,
	}
	for _, card := range cards {
		norm := textutil.Normalize(card.Name)
		if norm == "" {
			continue
		}
		if _, seen := c.byName[norm]; !seen {
			c.names = append(c.names, norm)
			c.prints[norm] = textutil.NewShingleFingerprint(norm, shingleSize)
		}
		c.byName[norm] = append(c.byName[norm], len(c.entries))
		c.entries = append(c.entries, entry{card: card, norm: norm, shingles: c.prints[norm]})
	}
	return c
}

// Load reads the configured catalog file.
func Load(ctx context.Context, cfg *config.Catalog) (*Catalog, error) {
	cards, err := LoadCards(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	return New(cards, Options{MinScore: cfg.MinScore}), nil
}

// Len returns the number of indexed cards.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Identify finds the most probable card for q.
func (c *Catalog) Identify(q Query) Identification {
	if c == nil || len(c.entries) == 0 {
		return Identification{Method: MethodNone}
	}
	name := textutil.Normalize(q.Name)
	collector := strings.TrimSpace(q.Collector)

	if name != "" {
		if idx, ok := c.byName[name]; ok {
			card := c.entries[idx[0]].card
			return Identification{
				Best:   &card,
				Score:  100,
				Method: MethodExact,
				Candidates: []Candidate{{
					Card: card, NameScore: 100, OracleScore: 1, CollectorScore: 100, Total: 100,
				}},
			}
		}
	}

	if collector != "" {
		for _, e := range c.entries {
			if e.card.CollectorNumber == "" || e.card.CollectorNumber != collector {
				continue
			}
			nameScore := collectorNameMismatch
			if name != "" && e.norm == name {
				nameScore = 100
			}
			total := nameScore*nameWeight + 100*collectorWeight
			return c.accept(Identification{
				Score:  total,
				Method: MethodCollector,
				Candidates: []Candidate{{
					Card: e.card, NameScore: nameScore, CollectorScore: 100, Total: total,
				}},
			})
		}
	}

	return c.accept(c.fuzzy(name, q.Oracle, collector))
}

func (c *Catalog) fuzzy(name, oracle, collector string) Identification {
	out := Identification{Method: MethodFuzzy}
	query := textutil.NewShingleFingerprint(name, shingleSize)
	if query == nil {
		out.Method = MethodNone
		return out
	}

	type scoredName struct {
		norm  string
		score float64
	}
	ranked := make([]scoredName, 0, len(c.names))
	for _, n := range c.names {
		if score := textutil.CosineSimilarity(query, c.prints[n]) * 100; score > 0 {
			ranked = append(ranked, scoredName{norm: n, score: score})
		}
	}
	slices.SortStableFunc(ranked, func(a, b scoredName) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return strings.Compare(a.norm, b.norm)
		}
	})
	if len(ranked) > c.topN {
		ranked = ranked[:c.topN]
	}

	for _, r := range ranked {
		for _, idx := range c.byName[r.norm] {
			card := c.entries[idx].card
			oracleScore := textutil.TokenOverlap(oracle, card.OracleText)
			collectorScore := 0.0
			if collector != "" && card.CollectorNumber == collector {
				collectorScore = 100
			}
			out.Candidates = append(out.Candidates, Candidate{
				Card:           card,
				NameScore:      r.score,
				OracleScore:    oracleScore,
				CollectorScore: collectorScore,
				Total:          r.score*nameWeight + oracleScore*100*oracleWeight + collectorScore*collectorWeight,
			})
		}
	}
	slices.SortStableFunc(out.Candidates, func(a, b Candidate) int {
		switch {
		case a.Total > b.Total:
			return -1
		case a.Total < b.Total:
			return 1
		default:
			return 0
		}
	})
	if len(out.Candidates) > 0 {
		out.Score = out.Candidates[0].Total
	}
	return out
}

// accept promotes the top candidate when it clears the minimum score.
func (c *Catalog) accept(id Identification) Identification {
	if len(id.Candidates) == 0 {
		return id
	}
	if id.Score >= c.minScore {
		card := id.Candidates[0].Card
		id.Best = &card
	}
	return id
}
