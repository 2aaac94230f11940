// Package reconcile applies user edits to a report. Mutations are a small
// closed set of named operations, each returning a new report value; the
// input record is never touched, so editing and saving stay decoupled.
package reconcile

import (
	"fmt"

	"pulseboard/internal/domain"
	"pulseboard/internal/ids"
	"pulseboard/internal/schema"
)

// Reconciler builds edited report values. IDs supplies identifiers for
// appended risk, action and dependency entries.
type Reconciler struct {
	IDs ids.Generator
}

func New(gen ids.Generator) Reconciler {
	return Reconciler{IDs: gen}
}

func (Reconciler) SetTitle(r domain.Report, title string) domain.Report {
	out := r.Clone()
	out.Title = title
	return out
}

func (Reconciler) SetProjectName(r domain.Report, name string) domain.Report {
	out := r.Clone()
	out.ProjectName = name
	return out
}

func (Reconciler) SetSummary(r domain.Report, summary string) domain.Report {
	out := r.Clone()
	out.Summary = summary
	return out
}

func (Reconciler) SetReportDate(r domain.Report, date string) domain.Report {
	out := r.Clone()
	out.ReportDate = date
	return out
}

func (Reconciler) SetOverallStatus(r domain.Report, status string) (domain.Report, error) {
	level, ok := schema.MatchStatusLevel(status)
	if !ok {
		return domain.Report{}, fmt.Errorf("unknown status %q", status)
	}
	out := r.Clone()
	out.OverallStatus = level
	return out, nil
}

// SetSentiment clamps into [0,100] rather than rejecting.
func (Reconciler) SetSentiment(r domain.Report, v int) domain.Report {
	out := r.Clone()
	out.DeliverySentiment = schema.ClampSentiment(v)
	return out
}

// SetHealth replaces one health dimension.
func (Reconciler) SetHealth(r domain.Report, dimension, status string) (domain.Report, error) {
	level, ok := schema.MatchStatusLevel(status)
	if !ok {
		return domain.Report{}, fmt.Errorf("unknown status %q", status)
	}
	out := r.Clone()
	switch dimension {
	case "schedule":
		out.Health.Schedule = level
	case "scope":
		out.Health.Scope = level
	case "quality":
		out.Health.Quality = level
	case "resource":
		out.Health.Resource = level
	default:
		return domain.Report{}, fmt.Errorf("unknown health dimension %q", dimension)
	}
	return out, nil
}

func (Reconciler) AddHighlight(r domain.Report, text string) domain.Report {
	out := r.Clone()
	out.Highlights = append(out.Highlights, text)
	return out
}

func (Reconciler) EditHighlight(r domain.Report, i int, text string) (domain.Report, error) {
	if i < 0 || i >= len(r.Highlights) {
		return domain.Report{}, fmt.Errorf("highlight index %d out of range", i)
	}
	out := r.Clone()
	out.Highlights[i] = text
	return out, nil
}

func (Reconciler) AddUpcomingWork(r domain.Report, text string) domain.Report {
	out := r.Clone()
	out.UpcomingWork = append(out.UpcomingWork, text)
	return out
}

func (Reconciler) EditUpcomingWork(r domain.Report, i int, text string) (domain.Report, error) {
	if i < 0 || i >= len(r.UpcomingWork) {
		return domain.Report{}, fmt.Errorf("upcoming work index %d out of range", i)
	}
	out := r.Clone()
	out.UpcomingWork[i] = text
	return out, nil
}

// AddRisk appends a blank entry with a fresh id and Medium severity, ready
// for in-place editing.
func (re Reconciler) AddRisk(r domain.Report) domain.Report {
	out := r.Clone()
	out.Risks = append(out.Risks, domain.RiskEntry{
		ID:       re.IDs.NewID("risk"),
		Severity: schema.FallbackSeverity,
	})
	return out
}

// EditRisk replaces the entry at i, keeping its identifier.
func (Reconciler) EditRisk(r domain.Report, i int, entry domain.RiskEntry) (domain.Report, error) {
	if i < 0 || i >= len(r.Risks) {
		return domain.Report{}, fmt.Errorf("risk index %d out of range", i)
	}
	sev, ok := schema.MatchSeverity(string(entry.Severity))
	if !ok {
		return domain.Report{}, fmt.Errorf("unknown severity %q", entry.Severity)
	}
	out := r.Clone()
	entry.ID = out.Risks[i].ID
	entry.Severity = sev
	out.Risks[i] = entry
	return out, nil
}

func (re Reconciler) AddActionItem(r domain.Report) domain.Report {
	out := r.Clone()
	out.ActionItems = append(out.ActionItems, domain.ActionEntry{
		ID:     re.IDs.NewID("action"),
		Status: schema.FallbackActionStatus,
	})
	return out
}

func (Reconciler) EditActionItem(r domain.Report, i int, entry domain.ActionEntry) (domain.Report, error) {
	if i < 0 || i >= len(r.ActionItems) {
		return domain.Report{}, fmt.Errorf("action item index %d out of range", i)
	}
	status, ok := schema.MatchActionStatus(string(entry.Status))
	if !ok {
		return domain.Report{}, fmt.Errorf("unknown action status %q", entry.Status)
	}
	out := r.Clone()
	entry.ID = out.ActionItems[i].ID
	entry.Status = status
	out.ActionItems[i] = entry
	return out, nil
}

func (re Reconciler) AddDependency(r domain.Report) domain.Report {
	out := r.Clone()
	out.Dependencies = append(out.Dependencies, domain.DependencyEntry{
		ID:     re.IDs.NewID("dep"),
		Status: schema.FallbackDependencyStatus,
	})
	return out
}

func (Reconciler) EditDependency(r domain.Report, i int, entry domain.DependencyEntry) (domain.Report, error) {
	if i < 0 || i >= len(r.Dependencies) {
		return domain.Report{}, fmt.Errorf("dependency index %d out of range", i)
	}
	status, ok := schema.MatchDependencyStatus(string(entry.Status))
	if !ok {
		return domain.Report{}, fmt.Errorf("unknown dependency status %q", entry.Status)
	}
	out := r.Clone()
	entry.ID = out.Dependencies[i].ID
	entry.Status = status
	out.Dependencies[i] = entry
	return out, nil
}

// Workload entries carry no id; identity stays positional.
func (Reconciler) AddWorkload(r domain.Report, entry domain.WorkloadEntry) domain.Report {
	out := r.Clone()
	out.Workload = append(out.Workload, entry)
	return out
}

func (Reconciler) EditWorkload(r domain.Report, i int, entry domain.WorkloadEntry) (domain.Report, error) {
	if i < 0 || i >= len(r.Workload) {
		return domain.Report{}, fmt.Errorf("workload index %d out of range", i)
	}
	out := r.Clone()
	out.Workload[i] = entry
	return out, nil
}
