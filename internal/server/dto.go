package server

import (
	"pulseboard/internal/domain"
)

// Request payloads

type IngestRequest struct {
	Content string `json:"content" doc:"Raw tabular project export"`
}

type LoginRequest struct {
	Email string `json:"email" format:"email"`
	Name  string `json:"name"`
}

// EditRequest names exactly one mutation. Which payload field applies
// depends on Op; Save persists the edited record in the same call.
type EditRequest struct {
	Op         string                  `json:"op" enum:"set_title,set_project_name,set_summary,set_report_date,set_status,set_sentiment,set_health,add_highlight,edit_highlight,add_upcoming_work,edit_upcoming_work,add_risk,edit_risk,add_action_item,edit_action_item,add_dependency,edit_dependency,add_workload,edit_workload"`
	Value      string                  `json:"value,omitempty"`
	Sentiment  *int                    `json:"sentiment,omitempty"`
	Dimension  string                  `json:"dimension,omitempty" enum:"schedule,scope,quality,resource"`
	Index      *int                    `json:"index,omitempty"`
	Risk       *domain.RiskEntry       `json:"risk,omitempty"`
	ActionItem *domain.ActionEntry     `json:"action_item,omitempty"`
	Dependency *domain.DependencyEntry `json:"dependency,omitempty"`
	Workload   *domain.WorkloadEntry   `json:"workload,omitempty"`
	Save       bool                    `json:"save,omitempty"`
}

// Response payloads

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type reportList struct {
	Items []domain.Report `json:"items"`
}

type exportResponse struct {
	Text string `json:"text"`
}
