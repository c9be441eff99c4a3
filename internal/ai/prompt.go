package ai

import (
	"encoding/json"
	"strings"
)

const extractionSystemPrompt = `You are a watershed-plan analyst. The user provides one page of a plan ` +
	`document rendered as HTML. Extract every goal, best-management practice (BMP), implementation ` +
	`activity, monitoring metric, outreach activity and geographic area stated on the page. ` +
	`Return ONLY a JSON object with exactly these keys: goals, bmps, implementation, monitoring, ` +
	`outreach, geographicAreas. Each key maps to an array (possibly empty). ` +
	`Every entity must carry an "evidence" array of verbatim snippets from the page that support it. ` +
	`Use {"value": ..., "unit": ...} for measured quantities and {"value": ..., "currency": ...} for costs. ` +
	`Use {"start": ..., "end": ...} for schedules. Omit nothing that is stated; invent nothing that is not.`

func buildExtractionUserPrompt(markup string) string {
	var b strings.Builder
	b.WriteString("Page markup:\n")
	b.WriteString(markup)
	b.WriteString("\n\nReturn ONLY the JSON object, no markdown.")
	return b.String()
}

const mergeSystemPrompt = `You reconcile extracted watershed-plan records against previously stored ones. ` +
	`Given an entity label, an EXISTING record and an INCOMING record, decide exactly one action: ` +
	`"insert" (no real-world match), "ignore" (noise or duplicate adding nothing), ` +
	`"match" (same record, optional field updates) or "update" (same record, field updates required). ` +
	`Treat titles or names with only small edit distance as the same record. ` +
	`For list-valued fields prefer the union of both sides. ` +
	`When the existing value is null and the incoming value is not, prefer the incoming value. ` +
	`Return ONLY a JSON object: {"action": "...", "updates": {...}} where "updates" may be omitted.`

func buildMergeUserPrompt(label string, existing, incoming map[string]any) string {
	ex, _ := json.Marshal(existing)
	in, _ := json.Marshal(incoming)
	var b strings.Builder
	b.WriteString("Entity label: ")
	b.WriteString(label)
	b.WriteString("\nEXISTING record:\n")
	b.Write(ex)
	b.WriteString("\nINCOMING record:\n")
	b.Write(in)
	b.WriteString("\n\nReturn ONLY the JSON decision object.")
	return b.String()
}
