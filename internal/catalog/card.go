package catalog

import (
	"encoding/json"
	"strings"
)

// Card is one catalog entry.
type Card struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	SetCode         string `json:"set,omitempty"`
	CollectorNumber string `json:"collector_number,omitempty"`
	OracleText      string `json:"oracle_text,omitempty"`
}

// cardWire accepts the field spellings found in common card exports.
type cardWire struct {
	ID              json.RawMessage `json:"id"`
	Name            string          `json:"name"`
	Title           string          `json:"title"`
	Set             string          `json:"set"`
	SetCode         string          `json:"set_code"`
	CollectorNumber json.RawMessage `json:"collector_number"`
	Collector       json.RawMessage `json:"collector"`
	OracleText      string          `json:"oracle_text"`
	Oracle          string          `json:"oracle"`
}

// UnmarshalJSON accepts name/title, set/set_code, collector_number/collector,
// and oracle_text/oracle. Numeric ids and collector numbers are kept as text.
func (c *Card) UnmarshalJSON(data []byte) error {
	var w cardWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Card{
		ID:              rawText(w.ID),
		Name:            firstNonEmpty(w.Name, w.Title),
		SetCode:         firstNonEmpty(w.Set, w.SetCode),
		CollectorNumber: firstNonEmpty(rawText(w.CollectorNumber), rawText(w.Collector)),
		OracleText:      firstNonEmpty(w.OracleText, w.Oracle),
	}
	return nil
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
