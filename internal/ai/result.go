// Package ai holds the language-model extraction client and the
// merge-decision oracle.
package ai

import "encoding/json"

// ExtractionResult is the fixed six-array contract of the page extraction
// call. Each array may be empty; entries are field-maps consumed by the
// reconciliation engine's category mappers.
type ExtractionResult struct {
	Goals           []map[string]any `json:"goals"`
	BMPs            []map[string]any `json:"bmps"`
	Implementation  []map[string]any `json:"implementation"`
	Monitoring      []map[string]any `json:"monitoring"`
	Outreach        []map[string]any `json:"outreach"`
	GeographicAreas []map[string]any `json:"geographicAreas"`
}

// IsEmpty reports whether no entities were extracted.
func (r *ExtractionResult) IsEmpty() bool {
	if r == nil {
		return true
	}
	return len(r.Goals)+len(r.BMPs)+len(r.Implementation)+
		len(r.Monitoring)+len(r.Outreach)+len(r.GeographicAreas) == 0
}

// ParseExtractionResult decodes and validates a raw model response.
func ParseExtractionResult(raw []byte) (*ExtractionResult, error) {
	if err := ValidateExtractionJSON(raw); err != nil {
		return nil, err
	}
	var out ExtractionResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
