// Package prompt turns a raw tabular export into the instruction payload for
// the generation service. It never validates or rejects input; garbage is
// forwarded as-is and surfaces downstream as a defaulted or failed response.
package prompt

import "fmt"

const template = `Act as a Senior AI Project Analyst.
Analyze the following raw project data (issue-tracker export, tabular format).

Tasks:
1. Identify the Project Name and overall phase.
2. Write a concise executive summary.
3. Calculate 'Workload' by analyzing assignee frequency and task volume.
4. Identify 'Dependencies' - look for blocked tasks or mentions of external teams.
5. Flag 'Risks' based on priority, due dates, and blockers.
6. Generate 3-5 'Action Items' for the PM to address next week.
7. Assign a 'Delivery Sentiment' score (0-100) based on velocity vs due dates.

Raw Data:
%s

Provide a professional, executive-ready response in JSON format.`

// Build combines the analyst role, task list and raw export verbatim.
func Build(raw string) string {
	return fmt.Sprintf(template, raw)
}
