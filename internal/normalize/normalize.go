// Package normalize turns the untrusted generation response into a canonical
// report. Malformed JSON is the only hard failure; every missing or
// wrong-typed field is silently repaired to its documented default, and every
// risk, action item and dependency gets a locally synthesized id regardless
// of what the source supplied.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"

	"pulseboard/internal/domain"
	"pulseboard/internal/ids"
	"pulseboard/internal/schema"
)

// Error is a fatal parse failure: the response text is not valid JSON and
// no partial record is produced.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("unparseable generation response: %v", e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Normalizer repairs responses against the report contract. IDs is the sole
// authority for nested entry identifiers; with a deterministic generator the
// whole pass is repeatable.
type Normalizer struct {
	IDs ids.Generator
}

func New(gen ids.Generator) Normalizer {
	return Normalizer{IDs: gen}
}

// Normalize parses raw and returns a fully defaulted report. ID, Title,
// ReportDate and CreatedAt are left zero; the caller stamps them at record
// creation time.
func (n Normalizer) Normalize(raw string) (domain.Report, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.Report{}, &Error{Err: err}
	}
	r := domain.Report{
		ProjectName:       asString(payload[schema.FieldProjectName]),
		Summary:           asString(payload[schema.FieldSummary]),
		OverallStatus:     statusOr(payload[schema.FieldOverallStatus]),
		Health:            n.health(payload[schema.FieldHealth]),
		Highlights:        stringList(payload[schema.FieldHighlights]),
		UpcomingWork:      stringList(payload[schema.FieldUpcomingWork]),
		Risks:             n.risks(payload[schema.FieldRisks]),
		ActionItems:       n.actionItems(payload[schema.FieldActionItems]),
		Workload:          workload(payload[schema.FieldWorkload]),
		Dependencies:      n.dependencies(payload[schema.FieldDependencies]),
		DeliverySentiment: sentiment(payload[schema.FieldDeliverySentiment]),
	}
	return r, nil
}

func (n Normalizer) health(v any) domain.HealthVector {
	obj, ok := v.(map[string]any)
	if !ok {
		return domain.HealthVector{
			Schedule: schema.FallbackStatus,
			Scope:    schema.FallbackStatus,
			Quality:  schema.FallbackStatus,
			Resource: schema.FallbackStatus,
		}
	}
	return domain.HealthVector{
		Schedule: statusOr(obj["schedule"]),
		Scope:    statusOr(obj["scope"]),
		Quality:  statusOr(obj["quality"]),
		Resource: statusOr(obj["resource"]),
	}
}

// risks synthesizes a fresh id for every entry so identifiers from the
// untrusted source never enter the identity space list diffing relies on.
func (n Normalizer) risks(v any) []domain.RiskEntry {
	out := []domain.RiskEntry{}
	for _, item := range objectList(v) {
		sev, _ := schema.MatchSeverity(asString(item["severity"]))
		out = append(out, domain.RiskEntry{
			ID:          n.IDs.NewID("risk"),
			Description: asString(item["description"]),
			Severity:    sev,
			Mitigation:  asString(item["mitigation"]),
		})
	}
	return out
}

func (n Normalizer) actionItems(v any) []domain.ActionEntry {
	out := []domain.ActionEntry{}
	for _, item := range objectList(v) {
		st, _ := schema.MatchActionStatus(asString(item["status"]))
		out = append(out, domain.ActionEntry{
			ID:      n.IDs.NewID("action"),
			Task:    asString(item["task"]),
			Owner:   asString(item["owner"]),
			DueDate: asString(item["dueDate"]),
			Status:  st,
		})
	}
	return out
}

func (n Normalizer) dependencies(v any) []domain.DependencyEntry {
	out := []domain.DependencyEntry{}
	for _, item := range objectList(v) {
		st, _ := schema.MatchDependencyStatus(asString(item["status"]))
		out = append(out, domain.DependencyEntry{
			ID:         n.IDs.NewID("dep"),
			Dependency: asString(item["dependency"]),
			Impact:     asString(item["impact"]),
			Status:     st,
		})
	}
	return out
}

// workload entries carry no id; identity is positional. loadPercentage is
// source-trusted and copied as-is, taskCount is coerced to a non-negative
// integer.
func workload(v any) []domain.WorkloadEntry {
	out := []domain.WorkloadEntry{}
	for _, item := range objectList(v) {
		count := int(asNumber(item["taskCount"]))
		if count < 0 {
			count = 0
		}
		out = append(out, domain.WorkloadEntry{
			Owner:          asString(item["owner"]),
			LoadPercentage: asNumber(item["loadPercentage"]),
			TaskCount:      count,
		})
	}
	return out
}

// sentiment clamps on the float before converting; converting an
// out-of-range float64 to int is implementation-defined.
func sentiment(v any) int {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) {
		return schema.DefaultSentiment
	}
	if f > 100 {
		return 100
	}
	if f < 0 {
		return 0
	}
	return schema.ClampSentiment(int(math.Round(f)))
}

func statusOr(v any) domain.StatusLevel {
	level, _ := schema.MatchStatusLevel(asString(v))
	return level
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asNumber(v any) float64 {
	f, _ := v.(float64)
	return f
}

func stringList(v any) []string {
	out := []string{}
	arr, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func objectList(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
