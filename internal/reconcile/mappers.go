package reconcile

import (
	"strings"

	"github.com/clearbasin/planengine/internal/ai"
	"github.com/clearbasin/planengine/internal/storage"
)

// categoryFields lists the keys carried for each category. Anything else the
// model emits is dropped before persistence.
var categoryFields = map[storage.Category][]string{
	storage.CategoryGoal: {
		"title", "description", "pollutant", "target", "progress",
		"deadline", "location", "evidence",
	},
	storage.CategoryBMP: {
		"name", "type", "quantity", "cost", "progress", "location",
		"responsibleParty", "schedule", "relatedGoals", "evidence",
	},
	storage.CategoryImplementation: {
		"action", "actor", "start", "end", "budget", "status",
		"progress", "dependencies", "location", "evidence",
	},
	storage.CategoryMonitoring: {
		"parameter", "method", "frequency", "threshold", "progress",
		"location", "responsibleParty", "evidence",
	},
	storage.CategoryOutreach: {
		"audience", "channel", "message", "kpi", "progress",
		"schedule", "responsibleParty", "evidence",
	},
	storage.CategoryGeographicArea: {
		"name", "huc", "coordinates", "description", "evidence",
	},
}

// keyFields names the identity field(s) per category. Outreach has no single
// required field, so its key is the audience and channel pair.
var keyFields = map[storage.Category][]string{
	storage.CategoryGoal:           {"title"},
	storage.CategoryBMP:            {"name"},
	storage.CategoryImplementation: {"action"},
	storage.CategoryMonitoring:     {"parameter"},
	storage.CategoryOutreach:       {"audience", "channel"},
	storage.CategoryGeographicArea: {"name"},
}

// categoryItems pulls the raw entity list for one category out of a page
// extraction result.
func categoryItems(result *ai.ExtractionResult, category storage.Category) []map[string]any {
	switch category {
	case storage.CategoryGoal:
		return result.Goals
	case storage.CategoryBMP:
		return result.BMPs
	case storage.CategoryImplementation:
		return result.Implementation
	case storage.CategoryMonitoring:
		return result.Monitoring
	case storage.CategoryOutreach:
		return result.Outreach
	case storage.CategoryGeographicArea:
		return result.GeographicAreas
	}
	return nil
}

// MapFields filters a raw model item down to the category's known keys and
// drops nil values. Returns nil when nothing usable remains.
func MapFields(category storage.Category, item map[string]any) storage.JSONMap {
	fields := storage.JSONMap{}
	for _, key := range categoryFields[category] {
		v, ok := item[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		fields[key] = v
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// NormalizedKey computes the lowercase trimmed identity key for a set of
// fields. Categories with composite keys join the parts with "|". An empty
// string means the item carries no identity and cannot be reconciled.
func NormalizedKey(category storage.Category, fields storage.JSONMap) string {
	parts := make([]string, 0, 2)
	for _, kf := range keyFields[category] {
		s, _ := fields[kf].(string)
		parts = append(parts, strings.ToLower(strings.TrimSpace(s)))
	}
	key := strings.Join(parts, "|")
	if strings.Trim(key, "|") == "" {
		return ""
	}
	return key
}
