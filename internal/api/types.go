package api

import (
	"cardsorter/internal/batch"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// AssignRequest is the body of preview and commit calls.
type AssignRequest struct {
	Name        string     `json:"name"`
	Confidence  Confidence `json:"confidence"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
	SortingMode string     `json:"sortingMode,omitempty"`
}

// AssignmentResult is the routing decision for one item.
type AssignmentResult struct {
	Cell           string `json:"cell"`
	Reason         string `json:"reason"`
	FirstLetter    string `json:"firstLetter"`
	Provenance     string `json:"provenance,omitempty"`
	FallbackReason string `json:"fallbackReason,omitempty"`
}

// Occupancy reports per-slot counts.
type Occupancy struct {
	Counts     map[string]int `json:"counts"`
	NearFull   []string       `json:"nearFull"`
	Full       []string       `json:"full"`
	ErrorSlot  string         `json:"errorSlot"`
	ErrorCount int            `json:"errorCount"`
	Total      int            `json:"total"`
}

// CommitResponse is returned by a committed assignment.
type CommitResponse struct {
	AssignmentResult
	OccupancySnapshot Occupancy `json:"occupancySnapshot"`
}

// ResetResponse acknowledges an occupancy reset.
type ResetResponse struct {
	OK        bool      `json:"ok"`
	Occupancy Occupancy `json:"occupancy"`
}

// Slot describes one grid slot with its live count.
type Slot struct {
	ID        string   `json:"id"`
	Column    string   `json:"column"`
	Row       int      `json:"row"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Z         float64  `json:"z"`
	Capacity  int      `json:"capacity"`
	Unbounded bool     `json:"unbounded,omitempty"`
	ErrorSlot bool     `json:"errorSlot,omitempty"`
	Letters   []string `json:"letters,omitempty"`
	Count     int      `json:"count"`
}

// GridResponse describes the loaded topology.
type GridResponse struct {
	Source    string   `json:"source"`
	Fallback  bool     `json:"fallback"`
	Columns   []string `json:"columns"`
	Rows      int      `json:"rows"`
	ErrorSlot string   `json:"errorSlot"`
	Slots     []Slot   `json:"slots"`
}

// AlphabetMapResponse maps letters to slot ids.
type AlphabetMapResponse struct {
	Letters   map[string]string `json:"letters"`
	ErrorSlot string            `json:"errorSlot"`
}

// RecentError is one entry of the run error feed.
type RecentError struct {
	ID           string `json:"id"`
	Reason       string `json:"reason"`
	ThumbnailRef string `json:"thumbnailRef,omitempty"`
	Name         string `json:"name,omitempty"`
}

// RunStatus is the per-tick run snapshot.
type RunStatus struct {
	State               string        `json:"state"`
	RunID               string        `json:"runId,omitempty"`
	Total               int           `json:"total"`
	Completed           int           `json:"completed"`
	Good                int           `json:"good"`
	Err                 int           `json:"err"`
	ThroughputPerMinute float64       `json:"throughputPerMinute"`
	ProgressPercent     float64       `json:"progressPercent"`
	CurrentItemLabel    string        `json:"currentItemLabel,omitempty"`
	RecentErrors        []RecentError `json:"recentErrors"`
	Ticking             bool          `json:"ticking"`
	LastTickError       string        `json:"lastTickError,omitempty"`
	StartedAt           string        `json:"startedAt,omitempty"`
	UpdatedAt           string        `json:"updatedAt,omitempty"`
	EndedAt             string        `json:"endedAt,omitempty"`
}

// RunStartRequest parameterizes a new run.
type RunStartRequest struct {
	Total int   `json:"total,omitempty"`
	Demo  *bool `json:"demo,omitempty"`
}

// Item is one queued identified item.
type Item struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name"`
	Confidence Confidence `json:"confidence"`
	Thumbnail  string     `json:"thumbnail,omitempty"`
	EnqueuedAt string     `json:"enqueuedAt,omitempty"`
}

// EnqueueRequest adds items to the pipeline.
type EnqueueRequest struct {
	Items []Item `json:"items"`
}

// EnqueueResponse reports the pipeline depth after enqueueing.
type EnqueueResponse struct {
	Accepted int `json:"accepted"`
	Pending  int `json:"pending"`
}

// StepResponse describes one manually stepped item.
type StepResponse struct {
	Item       Item             `json:"item"`
	Assignment AssignmentResult `json:"assignment"`
	MoveError  string           `json:"moveError,omitempty"`
	Pending    int              `json:"pending"`
}

// PipelineStatus mirrors the pipeline counters.
type PipelineStatus struct {
	Pending      int    `json:"pending"`
	AutoActive   bool   `json:"autoActive"`
	Stepping     bool   `json:"stepping"`
	Processed    int    `json:"processed"`
	MoveFailures int    `json:"moveFailures"`
	LastError    string `json:"lastError,omitempty"`
}

// IdentifyAction selects what happens after a successful identification.
type IdentifyAction string

const (
	IdentifyPreview IdentifyAction = "preview"
	IdentifyCommit  IdentifyAction = "commit"
	IdentifyEnqueue IdentifyAction = "enqueue"
)

// IdentifyRequest carries OCR text for one card.
type IdentifyRequest struct {
	Name      string         `json:"name"`
	Oracle    string         `json:"oracle,omitempty"`
	Collector string         `json:"collector,omitempty"`
	Thumbnail string         `json:"thumbnail,omitempty"`
	Action    IdentifyAction `json:"action,omitempty"`
}

// Candidate is one scored catalog card.
type Candidate struct {
	Name            string  `json:"name"`
	SetCode         string  `json:"set,omitempty"`
	CollectorNumber string  `json:"collectorNumber,omitempty"`
	NameScore       float64 `json:"nameScore"`
	OracleScore     float64 `json:"oracleScore"`
	CollectorScore  float64 `json:"collectorScore"`
	Total           float64 `json:"total"`
}

// IdentifyResponse reports the identification and the resulting assignment.
type IdentifyResponse struct {
	Matched    bool             `json:"matched"`
	Name       string           `json:"name"`
	Score      float64          `json:"score"`
	Confidence float64          `json:"confidence"`
	Method     string           `json:"method"`
	Candidates []Candidate      `json:"candidates,omitempty"`
	Action     IdentifyAction   `json:"action"`
	Assignment AssignmentResult `json:"assignment"`
	Occupancy  *Occupancy       `json:"occupancySnapshot,omitempty"`
	Pending    int              `json:"pending,omitempty"`
}

// BatchEvaluateRequest carries recorded results to compare.
type BatchEvaluateRequest struct {
	Records []batch.Record `json:"records"`
	// FillAssignments computes assignedCell for records that lack one.
	FillAssignments bool `json:"fillAssignments,omitempty"`
}

// BatchEvaluateResponse is the evaluation output.
type BatchEvaluateResponse struct {
	Rows    []batch.Row   `json:"rows"`
	Summary batch.Summary `json:"summary"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	LockFilePath string         `json:"lockFilePath"`
	LogPath      string         `json:"logPath,omitempty"`
	APIBind      string         `json:"apiBind,omitempty"`
	GridSource   string         `json:"gridSource"`
	GridFallback bool           `json:"gridFallback"`
	CatalogCards int            `json:"catalogCards"`
	Threshold    float64        `json:"threshold"`
	Run          RunStatus      `json:"run"`
	Occupancy    Occupancy      `json:"occupancy"`
	Pipeline     PipelineStatus `json:"pipeline"`
}

// LogEvent is one streamed log record.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp string            `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	RunID     string            `json:"runId,omitempty"`
	Slot      string            `json:"slot,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse is a page of log events plus the next cursor.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
