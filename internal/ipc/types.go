package ipc

import "cardsorter/internal/api"

// StartRequest asks the daemon to acquire its lock and begin serving.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the combined daemon, run, occupancy and pipeline status.
type StatusResponse = api.DaemonStatus

// AssignRequest is shared by Preview and Commit.
type AssignRequest = api.AssignRequest

// PreviewResponse carries the previewed assignment.
type PreviewResponse = api.AssignmentResult

// CommitResponse carries the committed assignment and occupancy.
type CommitResponse = api.CommitResponse

// ResetRequest zeroes slot counters.
type ResetRequest struct{}

// ResetResponse returns the cleared occupancy.
type ResetResponse = api.ResetResponse

// GridRequest fetches the active grid.
type GridRequest struct {
	// Reload rebuilds the topology from its source first.
	Reload bool `json:"reload"`
}

// GridResponse describes the grid with live counts.
type GridResponse = api.GridResponse

// AlphabetMapRequest fetches the letter routing table.
type AlphabetMapRequest struct{}

// AlphabetMapResponse maps letters to slots.
type AlphabetMapResponse = api.AlphabetMapResponse

// RunRequest drives a run transition or reads run status.
type RunRequest struct {
	// Action is one of status, start, pause, resume, end.
	Action string `json:"action"`
	Total  int    `json:"total,omitempty"`
	Demo   *bool  `json:"demo,omitempty"`
}

// RunResponse is the run snapshot after the action.
type RunResponse = api.RunStatus

// StepRequest processes one pending item.
type StepRequest struct{}

// StepResponse describes the processed item.
type StepResponse = api.StepResponse

// EnqueueRequest adds items to the pipeline.
type EnqueueRequest = api.EnqueueRequest

// EnqueueResponse reports pipeline depth.
type EnqueueResponse = api.EnqueueResponse

// IdentifyRequest carries OCR text.
type IdentifyRequest = api.IdentifyRequest

// IdentifyResponse carries the match and routing.
type IdentifyResponse = api.IdentifyResponse

// BatchEvaluateRequest carries recorded results.
type BatchEvaluateRequest = api.BatchEvaluateRequest

// BatchEvaluateResponse is the evaluation output.
type BatchEvaluateResponse = api.BatchEvaluateResponse

// LogTailRequest requests daemon log lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
