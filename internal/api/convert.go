package api

import (
	"slices"
	"time"

	"cardsorter/internal/assign"
	"cardsorter/internal/batch"
	"cardsorter/internal/catalog"
	"cardsorter/internal/grid"
	"cardsorter/internal/logging"
	"cardsorter/internal/pipeline"
	"cardsorter/internal/run"
)

// FromResult converts an assignment result to its API representation.
func FromResult(result assign.Result) AssignmentResult {
	return AssignmentResult{
		Cell:        result.Cell,
		Reason:      result.Reason,
		FirstLetter: result.FirstLetter,
	}
}

// FromOutcome converts a preview outcome, keeping its provenance.
func FromOutcome(outcome assign.Outcome) AssignmentResult {
	dto := FromResult(outcome.Result)
	dto.Provenance = string(outcome.Provenance)
	dto.FallbackReason = outcome.FallbackReason
	return dto
}

// ToOutcome rebuilds an outcome from its API representation.
func ToOutcome(dto AssignmentResult) assign.Outcome {
	return assign.Outcome{
		Result: assign.Result{
			Cell:        dto.Cell,
			Reason:      dto.Reason,
			FirstLetter: dto.FirstLetter,
		},
		Provenance:     assign.Provenance(dto.Provenance),
		FallbackReason: dto.FallbackReason,
	}
}

// FromOccupancy converts tracker counters. Slices are never nil so clients
// can iterate without checks.
func FromOccupancy(occ assign.Occupancy) Occupancy {
	counts := make(map[string]int, len(occ.Counts))
	for id, n := range occ.Counts {
		counts[id] = n
	}
	return Occupancy{
		Counts:     counts,
		NearFull:   nonNil(occ.NearFull),
		Full:       nonNil(occ.Full),
		ErrorSlot:  occ.ErrorSlot,
		ErrorCount: occ.ErrorCount,
		Total:      occ.Total,
	}
}

// FromCommit converts a committed assignment.
func FromCommit(commit assign.Commit) CommitResponse {
	return CommitResponse{
		AssignmentResult:  FromResult(commit.Result),
		OccupancySnapshot: FromOccupancy(commit.Occupancy),
	}
}

// FromGridState describes the active grid with live counts.
func FromGridState(state grid.State, occ assign.Occupancy) GridResponse {
	if state.Grid == nil {
		return GridResponse{Source: state.Source, Fallback: state.Fallback, Slots: []Slot{}}
	}
	errorSlot := state.Grid.ErrorSlotID()
	slots := state.Grid.Slots()
	out := GridResponse{
		Source:    state.Source,
		Fallback:  state.Fallback,
		Columns:   state.Grid.Columns(),
		Rows:      state.Grid.Rows(),
		ErrorSlot: errorSlot,
		Slots:     make([]Slot, 0, len(slots)),
	}
	for _, s := range slots {
		out.Slots = append(out.Slots, Slot{
			ID:        s.ID,
			Column:    s.Column,
			Row:       s.Row,
			X:         s.X,
			Y:         s.Y,
			Z:         s.Z,
			Capacity:  s.Capacity,
			Unbounded: !s.Bounded(),
			ErrorSlot: s.ID == errorSlot,
			Letters:   state.AlphabetMap.LettersFor(s.ID),
			Count:     occ.Counts[s.ID],
		})
	}
	return out
}

// FromAlphabetMap converts the letter routing table.
func FromAlphabetMap(m grid.AlphabetMap) AlphabetMapResponse {
	return AlphabetMapResponse{Letters: m.Letters(), ErrorSlot: m.ErrorSlot()}
}

// FromRunSnapshot converts a controller snapshot.
func FromRunSnapshot(snap run.Snapshot) RunStatus {
	dto := RunStatus{
		State:               string(snap.State),
		RunID:               snap.RunID,
		Total:               snap.Total,
		Completed:           snap.Completed,
		Good:                snap.Good,
		Err:                 snap.Errors,
		ThroughputPerMinute: snap.ThroughputPerMinute,
		ProgressPercent:     snap.ProgressPercent,
		CurrentItemLabel:    snap.CurrentItem,
		RecentErrors:        make([]RecentError, 0, len(snap.RecentErrors)),
		Ticking:             snap.Ticking,
		LastTickError:       snap.LastTickError,
		StartedAt:           formatTime(snap.StartedAt),
		UpdatedAt:           formatTime(snap.UpdatedAt),
		EndedAt:             formatTime(snap.EndedAt),
	}
	for _, e := range snap.RecentErrors {
		dto.RecentErrors = append(dto.RecentErrors, RecentError{
			ID:           e.SlotID,
			Reason:       e.Reason,
			ThumbnailRef: e.Thumbnail,
			Name:         e.Name,
		})
	}
	return dto
}

// ToPipelineItems converts enqueued DTOs.
func ToPipelineItems(items []Item) []pipeline.Item {
	out := make([]pipeline.Item, 0, len(items))
	for _, item := range items {
		out = append(out, pipeline.Item{
			ID:         item.ID,
			Name:       item.Name,
			Confidence: item.Confidence.Float(),
			Thumbnail:  item.Thumbnail,
		})
	}
	return out
}

// FromPipelineItem converts one queued item.
func FromPipelineItem(item pipeline.Item) Item {
	return Item{
		ID:         item.ID,
		Name:       item.Name,
		Confidence: Confidence(item.Confidence),
		Thumbnail:  item.Thumbnail,
		EnqueuedAt: formatTime(item.EnqueuedAt),
	}
}

// FromStepResult converts a processed pipeline step.
func FromStepResult(res pipeline.StepResult, pending int) StepResponse {
	return StepResponse{
		Item:       FromPipelineItem(res.Item),
		Assignment: FromResult(res.Commit.Result),
		MoveError:  res.MoveError,
		Pending:    pending,
	}
}

// FromPipelineStatus converts pipeline counters.
func FromPipelineStatus(st pipeline.Status) PipelineStatus {
	return PipelineStatus{
		Pending:      st.Pending,
		AutoActive:   st.AutoActive,
		Stepping:     st.Stepping,
		Processed:    st.Processed,
		MoveFailures: st.MoveFailures,
		LastError:    st.LastError,
	}
}

// FromIdentification converts catalog output. name is the OCR text used
// when nothing in the catalog cleared the minimum score.
func FromIdentification(id catalog.Identification, name string) IdentifyResponse {
	dto := IdentifyResponse{
		Matched:    id.Matched(),
		Name:       id.Name(name),
		Score:      id.Score,
		Confidence: id.Confidence(),
		Method:     string(id.Method),
	}
	for _, c := range id.Candidates {
		dto.Candidates = append(dto.Candidates, Candidate{
			Name:            c.Card.Name,
			SetCode:         c.Card.SetCode,
			CollectorNumber: c.Card.CollectorNumber,
			NameScore:       c.NameScore,
			OracleScore:     c.OracleScore,
			CollectorScore:  c.CollectorScore,
			Total:           c.Total,
		})
	}
	return dto
}

// FromBatchReport converts an evaluation report.
func FromBatchReport(report batch.Report) BatchEvaluateResponse {
	rows := report.Rows
	if rows == nil {
		rows = []batch.Row{}
	}
	return BatchEvaluateResponse{Rows: rows, Summary: report.Summary}
}

// FromLogEvent converts a hub event.
func FromLogEvent(evt logging.LogEvent) LogEvent {
	return LogEvent{
		Sequence:  evt.Sequence,
		Timestamp: formatTime(evt.Timestamp),
		Level:     evt.Level,
		Message:   evt.Message,
		Component: evt.Component,
		RunID:     evt.RunID,
		Slot:      evt.Slot,
		Fields:    evt.Fields,
	}
}

// FromLogEvents converts a page of hub events.
func FromLogEvents(events []logging.LogEvent, next uint64) LogStreamResponse {
	out := LogStreamResponse{Events: make([]LogEvent, 0, len(events)), Next: next}
	for _, evt := range events {
		out.Events = append(out.Events, FromLogEvent(evt))
	}
	return out
}

// ParseTime reads a timestamp written by this package.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return slices.Clone(values)
}
