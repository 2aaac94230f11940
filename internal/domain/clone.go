package domain

import "slices"

// Clone returns a deep copy of the report. Holders of the original never
// observe mutations made to the copy; empty lists stay empty, not nil.
func (r Report) Clone() Report {
	out := r
	out.Highlights = slices.Clone(r.Highlights)
	out.UpcomingWork = slices.Clone(r.UpcomingWork)
	out.Risks = slices.Clone(r.Risks)
	out.ActionItems = slices.Clone(r.ActionItems)
	out.Workload = slices.Clone(r.Workload)
	out.Dependencies = slices.Clone(r.Dependencies)
	return out
}
