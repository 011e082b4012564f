package batch

import (
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Classification labels one evaluated record.
type Classification string

const (
	ClassError     Classification = "error"
	ClassBothMatch Classification = "both_match"
	ClassNameOnly  Classification = "name_only"
	ClassSlotOnly  Classification = "slot_only"
	ClassNoMatch   Classification = "no_match"
)

// Record is one recorded identification and assignment outcome.
type Record struct {
	Filename       string   `json:"filename"`
	ExpectedName   string   `json:"expectedName"`
	ExpectedSlot   string   `json:"expectedCell"`
	IdentifiedName string   `json:"identifiedName"`
	Score          *float64 `json:"score,omitempty"`
	AssignedSlot   string   `json:"assignedCell"`
	Error          string   `json:"error,omitempty"`
}

// Confidence converts the identification score to [0,1]-style confidence.
// Scores above 1 are percentages; a missing score counts as fully confident.
func (r Record) Confidence() float64 {
	if r.Score == nil {
		return 1
	}
	if *r.Score > 1 {
		return *r.Score / 100
	}
	return *r.Score
}

// Row is a record with its computed classification.
type Row struct {
	Record
	NameMatch bool           `json:"nameMatch"`
	SlotMatch bool           `json:"cellMatch"`
	Match     Classification `json:"match"`
}

// Summary aggregates a batch. Error rows count toward Total only; rates are
// computed over Evaluated.
type Summary struct {
	Total        int     `json:"total"`
	Errors       int     `json:"errors"`
	Evaluated    int     `json:"evaluated"`
	NameMatches  int     `json:"nameMatches"`
	CellMatches  int     `json:"cellMatches"`
	BothMatches  int     `json:"bothMatches"`
	NameOnly     int     `json:"nameOnly"`
	SlotOnly     int     `json:"slotOnly"`
	NoMatch      int     `json:"noMatch"`
	NameAccuracy float64 `json:"nameAccuracy"`
	CellAccuracy float64 `json:"cellAccuracy"`
	BothAccuracy float64 `json:"bothAccuracy"`
	MeanScore    float64 `json:"meanScore"`
	ScoreStdDev  float64 `json:"scoreStdDev"`
}

// Report is the full evaluation output.
type Report struct {
	Rows    []Row   `json:"rows"`
	Summary Summary `json:"summary"`
}

// Classify labels a single record.
func Classify(r Record) Row {
	row := Row{Record: r}
	if strings.TrimSpace(r.Error) != "" {
		row.Match = ClassError
		return row
	}
	row.NameMatch = sameText(r.ExpectedName, r.IdentifiedName)
	row.SlotMatch = sameText(r.ExpectedSlot, r.AssignedSlot)
	switch {
	case row.NameMatch && row.SlotMatch:
		row.Match = ClassBothMatch
	case row.NameMatch:
		row.Match = ClassNameOnly
	case row.SlotMatch:
		row.Match = ClassSlotOnly
	default:
		row.Match = ClassNoMatch
	}
	return row
}

// sameText compares trimmed values case-insensitively. An empty expected
// value has nothing to match against.
func sameText(expected, actual string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return false
	}
	return strings.EqualFold(expected, strings.TrimSpace(actual))
}

// Evaluate classifies every record and summarizes the batch.
func Evaluate(records []Record) Report {
	report := Report{Rows: make([]Row, 0, len(records))}
	sum := &report.Summary
	var scores []float64
	for _, rec := range records {
		row := Classify(rec)
		report.Rows = append(report.Rows, row)
		sum.Total++
		if row.Match == ClassError {
			sum.Errors++
			continue
		}
		sum.Evaluated++
		if row.NameMatch {
			sum.NameMatches++
		}
		if row.SlotMatch {
			sum.CellMatches++
		}
		switch row.Match {
		case ClassBothMatch:
			sum.BothMatches++
		case ClassNameOnly:
			sum.NameOnly++
		case ClassSlotOnly:
			sum.SlotOnly++
		default:
			sum.NoMatch++
		}
		if rec.Score != nil {
			scores = append(scores, rec.Confidence())
		}
	}
	if sum.Evaluated > 0 {
		n := float64(sum.Evaluated)
		sum.NameAccuracy = float64(sum.NameMatches) / n
		sum.CellAccuracy = float64(sum.CellMatches) / n
		sum.BothAccuracy = float64(sum.BothMatches) / n
	}
	if len(scores) > 0 {
		sum.MeanScore = stat.Mean(scores, nil)
	}
	if len(scores) > 1 {
		sum.ScoreStdDev = stat.StdDev(scores, nil)
	}
	return report
}
