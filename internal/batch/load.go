package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"cardsorter/internal/assign"
	"cardsorter/internal/grid"
)

// Load reads records from a JSON array or newline-delimited JSON file.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON array or NDJSON payload. Blank lines are skipped.
func Parse(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode batch array: %w", err)
		}
		return records, nil
	}

	var records []Record
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("decode batch line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan batch records: %w", err)
	}
	return records, nil
}

// FillAssignments computes the assigned slot for records that lack one,
// using the preview rules. Records carrying an error are left alone. The
// input slice is not modified.
func FillAssignments(records []Record, alphabet grid.AlphabetMap, policy assign.Policy) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	for i := range out {
		if out[i].Error != "" || out[i].AssignedSlot != "" {
			continue
		}
		result := assign.Preview(out[i].IdentifiedName, out[i].Confidence(), alphabet, policy)
		out[i].AssignedSlot = result.Cell
	}
	return out
}
