// Package schema is the single source of truth for the generated report
// shape: field names, types, enum domains and required-ness. The generation
// request and the response normalizer both consume this table, so what we
// ask the model for and what we accept back cannot drift apart.
package schema

import (
	"strings"

	"google.golang.org/genai"

	"pulseboard/internal/domain"
)

type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindInteger
	KindEnum
	KindObject
	KindStringArray
	KindObjectArray
)

// Field declares one field of the report contract. For KindObject and
// KindObjectArray, Object holds the nested field table.
type Field struct {
	Name        string
	Kind        Kind
	Enum        []string
	Required    bool
	Description string
	Object      []Field
}

// Top-level contract field names.
const (
	FieldProjectName       = "projectName"
	FieldSummary           = "summary"
	FieldOverallStatus     = "overallStatus"
	FieldDeliverySentiment = "deliverySentiment"
	FieldHealth            = "health"
	FieldHighlights        = "highlights"
	FieldUpcomingWork      = "upcomingWork"
	FieldWorkload          = "workload"
	FieldDependencies      = "dependencies"
	FieldRisks             = "risks"
	FieldActionItems       = "actionItems"
)

// Defaults applied by soft repair.
const (
	FallbackStatus           = domain.StatusOnTrack
	FallbackSeverity         = domain.SeverityMedium
	FallbackActionStatus     = domain.ActionOpen
	FallbackDependencyStatus = domain.DependencyWaiting
	DefaultSentiment         = 50
)

func statusLevelStrings() []string {
	levels := domain.StatusLevels()
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}

func severityStrings() []string {
	sevs := domain.Severities()
	out := make([]string, len(sevs))
	for i, s := range sevs {
		out[i] = string(s)
	}
	return out
}

func actionStatusStrings() []string {
	sts := domain.ActionStatuses()
	out := make([]string, len(sts))
	for i, s := range sts {
		out[i] = string(s)
	}
	return out
}

func dependencyStatusStrings() []string {
	sts := domain.DependencyStatuses()
	out := make([]string, len(sts))
	for i, s := range sts {
		out[i] = string(s)
	}
	return out
}

// Fields returns the report contract table. All fields are required in the
// request so the service is pushed to emit them; every one of them is still
// defaultable on the response side.
func Fields() []Field {
	statusEnum := statusLevelStrings()
	healthDim := func(name string) Field {
		return Field{Name: name, Kind: KindEnum, Enum: statusEnum, Required: true}
	}
	return []Field{
		{Name: FieldProjectName, Kind: KindString, Required: true},
		{Name: FieldSummary, Kind: KindString, Required: true},
		{Name: FieldOverallStatus, Kind: KindEnum, Enum: statusEnum, Required: true},
		{Name: FieldDeliverySentiment, Kind: KindNumber, Required: true,
			Description: "A confidence score from 0-100 on project success."},
		{Name: FieldHealth, Kind: KindObject, Required: true, Object: []Field{
			healthDim("schedule"),
			healthDim("scope"),
			healthDim("quality"),
			healthDim("resource"),
		}},
		{Name: FieldHighlights, Kind: KindStringArray, Required: true},
		{Name: FieldUpcomingWork, Kind: KindStringArray, Required: true},
		{Name: FieldWorkload, Kind: KindObjectArray, Required: true, Object: []Field{
			{Name: "owner", Kind: KindString, Required: true},
			{Name: "loadPercentage", Kind: KindNumber, Required: true},
			{Name: "taskCount", Kind: KindInteger, Required: true},
		}},
		{Name: FieldDependencies, Kind: KindObjectArray, Required: true, Object: []Field{
			{Name: "dependency", Kind: KindString, Required: true},
			{Name: "impact", Kind: KindString, Required: true},
			{Name: "status", Kind: KindEnum, Enum: dependencyStatusStrings(), Required: true},
		}},
		{Name: FieldRisks, Kind: KindObjectArray, Required: true, Object: []Field{
			{Name: "description", Kind: KindString, Required: true},
			{Name: "severity", Kind: KindEnum, Enum: severityStrings(), Required: true},
			{Name: "mitigation", Kind: KindString, Required: true},
		}},
		{Name: FieldActionItems, Kind: KindObjectArray, Required: true, Object: []Field{
			{Name: "task", Kind: KindString, Required: true},
			{Name: "owner", Kind: KindString, Required: true},
			{Name: "dueDate", Kind: KindString, Required: true},
			{Name: "status", Kind: KindEnum, Enum: actionStatusStrings(), Required: true},
		}},
	}
}

// ResponseSchema builds the structured-output schema sent with every
// generation request. The service enforces field names and enum domains at
// generation time; the normalizer re-checks the same table on the way back.
func ResponseSchema() *genai.Schema {
	return objectSchema(Fields())
}

func objectSchema(fields []Field) *genai.Schema {
	props := make(map[string]*genai.Schema, len(fields))
	var required []string
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   required,
	}
}

func fieldSchema(f Field) *genai.Schema {
	switch f.Kind {
	case KindNumber:
		return &genai.Schema{Type: genai.TypeNumber, Description: f.Description}
	case KindInteger:
		return &genai.Schema{Type: genai.TypeInteger, Description: f.Description}
	case KindEnum:
		return &genai.Schema{Type: genai.TypeString, Enum: f.Enum, Description: f.Description}
	case KindObject:
		return objectSchema(f.Object)
	case KindStringArray:
		return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	case KindObjectArray:
		return &genai.Schema{Type: genai.TypeArray, Items: objectSchema(f.Object)}
	default:
		return &genai.Schema{Type: genai.TypeString, Description: f.Description}
	}
}

// MatchStatusLevel repairs enum casing ("on track" -> "On Track"). The
// boolean reports whether the input named a declared level at all.
func MatchStatusLevel(v string) (domain.StatusLevel, bool) {
	for _, l := range domain.StatusLevels() {
		if strings.EqualFold(strings.TrimSpace(v), string(l)) {
			return l, true
		}
	}
	return FallbackStatus, false
}

func MatchSeverity(v string) (domain.Severity, bool) {
	for _, s := range domain.Severities() {
		if strings.EqualFold(strings.TrimSpace(v), string(s)) {
			return s, true
		}
	}
	return FallbackSeverity, false
}

func MatchActionStatus(v string) (domain.ActionStatus, bool) {
	for _, s := range domain.ActionStatuses() {
		if strings.EqualFold(strings.TrimSpace(v), string(s)) {
			return s, true
		}
	}
	return FallbackActionStatus, false
}

func MatchDependencyStatus(v string) (domain.DependencyStatus, bool) {
	for _, s := range domain.DependencyStatuses() {
		if strings.EqualFold(strings.TrimSpace(v), string(s)) {
			return s, true
		}
	}
	return FallbackDependencyStatus, false
}

// ClampSentiment forces a delivery sentiment into [0,100].
func ClampSentiment(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
