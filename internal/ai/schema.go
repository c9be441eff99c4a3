package ai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildExtractionSchema returns the JSON Schema for the six-array page
// extraction contract. It is sent to the model as an output constraint and
// used locally to validate responses.
func BuildExtractionSchema() map[string]any {
	entityArray := func(required []string, props map[string]any) map[string]any {
		base := map[string]any{
			"evidence": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		}
		for k, v := range props {
			base[k] = v
		}
		items := map[string]any{
			"type":       "object",
			"properties": base,
		}
		// "required": null is not a valid schema; omit the key entirely.
		if len(required) > 0 {
			items["required"] = required
		}
		return map[string]any{
			"type":  "array",
			"items": items,
		}
	}
	str := map[string]any{"type": []any{"string", "null"}}
	valueUnit := map[string]any{
		"type": []any{"object", "null"},
		"properties": map[string]any{
			"value": map[string]any{"type": []any{"number", "string", "null"}},
			"unit":  map[string]any{"type": []any{"string", "null"}},
		},
	}
	valueCurrency := map[string]any{
		"type": []any{"object", "null"},
		"properties": map[string]any{
			"value":    map[string]any{"type": []any{"number", "string", "null"}},
			"currency": map[string]any{"type": []any{"string", "null"}},
		},
	}
	schedule := map[string]any{
		"type": []any{"object", "null"},
		"properties": map[string]any{
			"start": str,
			"end":   str,
		},
	}
	stringArray := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}

	return map[string]any{
		"type":     "object",
		"required": []string{"goals", "bmps", "implementation", "monitoring", "outreach", "geographicAreas"},
		"properties": map[string]any{
			"goals": entityArray([]string{"title"}, map[string]any{
				"title":       map[string]any{"type": "string"},
				"description": str,
				"pollutant":   str,
				"target":      valueUnit,
				"progress":    valueUnit,
				"deadline":    str,
				"location":    str,
			}),
			"bmps": entityArray([]string{"name"}, map[string]any{
				"name":             map[string]any{"type": "string"},
				"type":             str,
				"quantity":         valueUnit,
				"cost":             valueCurrency,
				"progress":         valueUnit,
				"location":         str,
				"responsibleParty": str,
				"schedule":         schedule,
				"relatedGoals":     stringArray,
			}),
			"implementation": entityArray([]string{"action"}, map[string]any{
				"action":       map[string]any{"type": "string"},
				"actor":        str,
				"start":        str,
				"end":          str,
				"budget":       valueCurrency,
				"status":       str,
				"progress":     valueUnit,
				"dependencies": stringArray,
				"location":     str,
			}),
			"monitoring": entityArray([]string{"parameter"}, map[string]any{
				"parameter":        map[string]any{"type": "string"},
				"method":           str,
				"frequency":        str,
				"threshold":        valueUnit,
				"progress":         valueUnit,
				"location":         str,
				"responsibleParty": str,
			}),
			"outreach": entityArray(nil, map[string]any{
				"audience":         str,
				"channel":          str,
				"message":          str,
				"kpi":              valueUnit,
				"progress":         valueUnit,
				"schedule":         schedule,
				"responsibleParty": str,
			}),
			"geographicAreas": entityArray([]string{"name"}, map[string]any{
				"name":        map[string]any{"type": "string"},
				"huc":         str,
				"coordinates": map[string]any{"type": []any{"array", "null"}},
				"description": str,
			}),
		},
	}
}

var extractionSchema = mustCompile(BuildExtractionSchema())

// ValidateExtractionJSON validates a raw model response against the
// extraction contract.
func ValidateExtractionJSON(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode extraction payload: %w", err)
	}
	if err := extractionSchema.Validate(v); err != nil {
		return fmt.Errorf("extraction payload schema: %w", err)
	}
	return nil
}

func mustCompile(schema map[string]any) *jsonschema.Schema {
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("extraction.json", bytes.NewReader(raw)); err != nil {
		panic(err)
	}
	compiled, err := c.Compile("extraction.json")
	if err != nil {
		panic(err)
	}
	return compiled
}
