package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/clearbasin/planengine/internal/ai"
	"github.com/clearbasin/planengine/internal/observability"
	"github.com/clearbasin/planengine/internal/storage"
)

// Engine folds per-page extraction results into the document's persisted
// entity records. Each category is reconciled independently against a
// snapshot taken once per call.
type Engine struct {
	entities storage.EntityStore
	oracle   ai.MergeOracle
	fallback *ai.ConservativeOracle
	logger   *observability.Logger
}

// NewEngine creates a reconciliation engine. The oracle may be model backed
// or the deterministic fallback; a failing oracle degrades to the fallback
// per record.
func NewEngine(entities storage.EntityStore, oracle ai.MergeOracle, logger *observability.Logger) *Engine {
	return &Engine{
		entities: entities,
		oracle:   oracle,
		fallback: ai.NewConservativeOracle(),
		logger:   logger.WithComponent("reconcile"),
	}
}

// Reconcile merges one page's extraction result into the upload's records.
// Persistence errors abort the call; oracle errors do not.
func (e *Engine) Reconcile(ctx context.Context, uploadID uuid.UUID, result *ai.ExtractionResult) error {
	if result == nil {
		return nil
	}
	for _, category := range storage.Categories {
		if err := e.reconcileCategory(ctx, uploadID, category, categoryItems(result, category)); err != nil {
			return fmt.Errorf("reconcile %s records: %w", category, err)
		}
	}
	return nil
}

func (e *Engine) reconcileCategory(ctx context.Context, uploadID uuid.UUID, category storage.Category, items []map[string]any) error {
	if len(items) == 0 {
		return nil
	}

	existing, err := e.entities.FindByParent(ctx, category, uploadID)
	if err != nil {
		return err
	}
	// Identity index over the snapshot. The earliest record wins a key, so
	// later oracle-inserted duplicates never shadow it.
	index := make(map[string]*storage.EntityRecord, len(existing))
	for _, rec := range existing {
		key := NormalizedKey(category, rec.Fields)
		if key == "" {
			continue
		}
		if _, taken := index[key]; !taken {
			index[key] = rec
		}
	}

	for _, item := range items {
		fields := MapFields(category, item)
		if fields == nil {
			continue
		}
		key := NormalizedKey(category, fields)
		if key == "" {
			e.logger.Debug().Str("category", string(category)).Msg("skipping record without identity fields")
			continue
		}

		candidate := index[key]
		if candidate == nil {
			// No key match: the oracle may still flag the record as noise.
			// An unreachable oracle defaults to insert.
			decision, derr := e.oracle.Decide(ctx, string(category), nil, fields)
			if derr == nil && decision.Action == ai.ActionIgnore {
				continue
			}
			rec := &storage.EntityRecord{UploadID: uploadID, Category: category, Fields: fields}
			if err := e.entities.Save(ctx, rec); err != nil {
				return err
			}
			index[key] = rec
			continue
		}

		decision, derr := e.oracle.Decide(ctx, string(category), candidate.Fields, fields)
		if derr != nil {
			e.logger.Warn().Err(derr).
				Str("category", string(category)).
				Str("key", key).
				Msg("merge oracle failed, applying conservative fallback")
			decision, _ = e.fallback.Decide(ctx, string(category), candidate.Fields, fields)
		}

		switch decision.Action {
		case ai.ActionInsert:
			rec := &storage.EntityRecord{UploadID: uploadID, Category: category, Fields: fields}
			if err := e.entities.Save(ctx, rec); err != nil {
				return err
			}
		case ai.ActionIgnore:
			// Dropped as noise.
		case ai.ActionMatch, ai.ActionUpdate:
			// Match may still carry field updates alongside the identity
			// confirmation.
			candidate.Fields = ApplyUpdates(candidate.Fields, decision.Updates)
			if err := e.entities.Save(ctx, candidate); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyUpdates merges an update set into existing fields. List fields union
// with order preserved and duplicates dropped; scalar fields take the
// incoming value. Nil updates are skipped so existing data survives.
func ApplyUpdates(existing storage.JSONMap, updates map[string]any) storage.JSONMap {
	out := make(storage.JSONMap, len(existing)+len(updates))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range updates {
		if v == nil {
			continue
		}
		cur, hasCur := toList(out[k])
		inc, isList := toList(v)
		if hasCur && isList {
			out[k] = unionLists(cur, inc)
			continue
		}
		out[k] = v
	}
	return out
}

func toList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func unionLists(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]any{a, b} {
		for _, v := range list {
			key := listItemKey(v)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func listItemKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
