package api

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
)

// DefaultConfidence is assumed when a caller omits or garbles confidence.
const DefaultConfidence = 1.0

// Confidence decodes leniently: numbers and numeric strings are accepted,
// and anything else (null, "", "high", NaN) becomes DefaultConfidence.
// Range is not validated.
type Confidence float64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	*c = DefaultConfidence
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		if !math.IsNaN(f) {
			*c = Confidence(f)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			*c = Confidence(parsed)
		}
	}
	return nil
}

// Float returns the value as float64.
func (c Confidence) Float() float64 { return float64(c) }

// DecodeAssignRequest reads an AssignRequest, defaulting a missing
// confidence to DefaultConfidence. An empty body yields an empty name.
func DecodeAssignRequest(r io.Reader) (AssignRequest, error) {
	req := AssignRequest{Confidence: DefaultConfidence}
	if err := decodeBody(r, &req); err != nil {
		return AssignRequest{}, err
	}
	return req, nil
}

// DecodeEnqueueRequest reads an EnqueueRequest. Items without a confidence
// default to DefaultConfidence. A bare JSON array of items is also accepted.
func DecodeEnqueueRequest(r io.Reader) (EnqueueRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return EnqueueRequest{}, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return EnqueueRequest{}, nil
	}
	var raw []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return EnqueueRequest{}, err
		}
	} else {
		var wrapper struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return EnqueueRequest{}, err
		}
		raw = wrapper.Items
	}
	req := EnqueueRequest{Items: make([]Item, 0, len(raw))}
	for _, msg := range raw {
		item := Item{Confidence: DefaultConfidence}
		if err := json.Unmarshal(msg, &item); err != nil {
			return EnqueueRequest{}, err
		}
		req.Items = append(req.Items, item)
	}
	return req, nil
}

func decodeBody(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
