package ai

import (
	"context"
	"encoding/json"
	"fmt"
)

// Action is a merge-oracle decision kind.
type Action string

const (
	ActionInsert Action = "insert"
	ActionIgnore Action = "ignore"
	ActionMatch  Action = "match"
	ActionUpdate Action = "update"
)

// Decision is the merge oracle's verdict on one incoming record.
type Decision struct {
	Action  Action         `json:"action"`
	Updates map[string]any `json:"updates,omitempty"`
}

// MergeOracle decides how an incoming extracted record relates to an
// existing persisted one. An error is a valid outcome: the caller applies
// its conservative fallback instead of retrying.
type MergeOracle interface {
	Decide(ctx context.Context, label string, existing, incoming map[string]any) (*Decision, error)
}

// ErrOracleUnavailable is returned when the model-backed oracle cannot be
// called at all (missing credentials).
var ErrOracleUnavailable = fmt.Errorf("merge oracle unavailable")

// ModelOracle asks the language model for a merge decision.
type ModelOracle struct {
	client *Client
}

// NewModelOracle creates a model-backed merge oracle.
func NewModelOracle(client *Client) *ModelOracle {
	return &ModelOracle{client: client}
}

// Decide performs one oracle round trip. Network and parse failures are
// returned to the caller; there is no internal retry.
func (o *ModelOracle) Decide(ctx context.Context, label string, existing, incoming map[string]any) (*Decision, error) {
	if !o.client.Available() {
		return nil, ErrOracleUnavailable
	}

	content, err := o.client.complete(ctx, mergeSystemPrompt, buildMergeUserPrompt(label, existing, incoming))
	if err != nil {
		return nil, fmt.Errorf("merge decision call: %w", err)
	}

	var d Decision
	if err := json.Unmarshal([]byte(content), &d); err != nil {
		return nil, fmt.Errorf("decode merge decision: %w", err)
	}
	switch d.Action {
	case ActionInsert, ActionIgnore, ActionMatch, ActionUpdate:
		return &d, nil
	default:
		return nil, fmt.Errorf("merge decision has unknown action %q", d.Action)
	}
}

// ConservativeOracle is the deterministic fallback implementation: it never
// drops data and never overwrites scalar fields. With no existing record it
// inserts; against a candidate it unions the evidence-like list fields only.
type ConservativeOracle struct{}

// NewConservativeOracle creates the fallback oracle.
func NewConservativeOracle() *ConservativeOracle {
	return &ConservativeOracle{}
}

// Decide implements MergeOracle deterministically.
func (o *ConservativeOracle) Decide(_ context.Context, _ string, existing, incoming map[string]any) (*Decision, error) {
	if len(existing) == 0 {
		return &Decision{Action: ActionInsert}, nil
	}
	updates := map[string]any{}
	for _, field := range []string{"evidence", "relatedGoals"} {
		if v, ok := incoming[field]; ok {
			updates[field] = v
		}
	}
	return &Decision{Action: ActionUpdate, Updates: updates}, nil
}
