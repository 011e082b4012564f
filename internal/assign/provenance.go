package assign

// Provenance records where a preview was computed.
type Provenance string

const (
	// ProvenanceBackend means the running daemon computed the result.
	ProvenanceBackend Provenance = "backend"
	// ProvenanceLocal means the daemon was unreachable and the caller
	// computed the result against its own grid.
	ProvenanceLocal Provenance = "local"
)

// Outcome pairs a preview result with its provenance.
type Outcome struct {
	Result
	Provenance Provenance `json:"provenance"`
	// FallbackReason explains why a local computation was used.
	FallbackReason string `json:"fallbackReason,omitempty"`
}

// Backend wraps a daemon-computed result.
func Backend(result Result) Outcome {
	return Outcome{Result: result, Provenance: ProvenanceBackend}
}

// Local wraps a locally computed result with the reason the daemon was skipped.
func Local(result Result, reason error) Outcome {
	out := Outcome{Result: result, Provenance: ProvenanceLocal}
	if reason != nil {
		out.FallbackReason = reason.Error()
	}
	return out
}
