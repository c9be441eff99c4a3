package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clearbasin/planengine/internal/storage"
)

func TestMapFieldsFiltersUnknownAndEmpty(t *testing.T) {
	fields := MapFields(storage.CategoryGoal, map[string]any{
		"title":       "Reduce sediment",
		"description": "",
		"pollutant":   nil,
		"confidence":  0.93,
		"evidence":    []any{"p.2"},
	})

	assert.Equal(t, storage.JSONMap{
		"title":    "Reduce sediment",
		"evidence": []any{"p.2"},
	}, fields)
}

func TestMapFieldsReturnsNilWhenNothingUsable(t *testing.T) {
	assert.Nil(t, MapFields(storage.CategoryBMP, map[string]any{
		"name":       "   ",
		"irrelevant": "x",
	}))
	assert.Nil(t, MapFields(storage.CategoryBMP, map[string]any{}))
}

func TestNormalizedKeyLowercasesAndTrims(t *testing.T) {
	key := NormalizedKey(storage.CategoryGoal, storage.JSONMap{"title": "  Reduce Nitrogen  "})
	assert.Equal(t, "reduce nitrogen", key)
}

func TestNormalizedKeyOutreachComposite(t *testing.T) {
	key := NormalizedKey(storage.CategoryOutreach, storage.JSONMap{
		"audience": "Landowners",
		"channel":  "Workshops",
	})
	assert.Equal(t, "landowners|workshops", key)

	// A single present part still identifies the record.
	partial := NormalizedKey(storage.CategoryOutreach, storage.JSONMap{"audience": "Landowners"})
	assert.Equal(t, "landowners|", partial)
}

func TestNormalizedKeyEmptyWithoutIdentity(t *testing.T) {
	assert.Equal(t, "", NormalizedKey(storage.CategoryOutreach, storage.JSONMap{"message": "join us"}))
	assert.Equal(t, "", NormalizedKey(storage.CategoryMonitoring, storage.JSONMap{"parameter": "   "}))
	assert.Equal(t, "", NormalizedKey(storage.CategoryImplementation, storage.JSONMap{"action": 42}))
}
