package domain

// StatusLevel is the traffic-light status used for the overall report and
// each health dimension. Severity order: On Track < At Risk < Off Track.
type StatusLevel string

const (
	StatusOnTrack  StatusLevel = "On Track"
	StatusAtRisk   StatusLevel = "At Risk"
	StatusOffTrack StatusLevel = "Off Track"
)

type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

type ActionStatus string

const (
	ActionOpen    ActionStatus = "Open"
	ActionClosed  ActionStatus = "Closed"
	ActionBlocked ActionStatus = "Blocked"
)

type DependencyStatus string

const (
	DependencyWaiting  DependencyStatus = "Waiting"
	DependencyResolved DependencyStatus = "Resolved"
	DependencyCritical DependencyStatus = "Critical"
)

// HealthVector rates the four delivery dimensions of a project.
type HealthVector struct {
	Schedule StatusLevel `json:"schedule" enum:"On Track,At Risk,Off Track"`
	Scope    StatusLevel `json:"scope" enum:"On Track,At Risk,Off Track"`
	Quality  StatusLevel `json:"quality" enum:"On Track,At Risk,Off Track"`
	Resource StatusLevel `json:"resource" enum:"On Track,At Risk,Off Track"`
}

// RiskEntry ids are assigned locally, never taken from the generation source.
type RiskEntry struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity" enum:"High,Medium,Low"`
	Mitigation  string   `json:"mitigation"`
}

type ActionEntry struct {
	ID      string       `json:"id"`
	Task    string       `json:"task"`
	Owner   string       `json:"owner"`
	DueDate string       `json:"dueDate"`
	Status  ActionStatus `json:"status" enum:"Open,Closed,Blocked"`
}

// WorkloadEntry has no id; its identity is its position in the list.
type WorkloadEntry struct {
	Owner          string  `json:"owner"`
	LoadPercentage float64 `json:"loadPercentage"`
	TaskCount      int     `json:"taskCount"`
}

type DependencyEntry struct {
	ID         string           `json:"id"`
	Dependency string           `json:"dependency"`
	Impact     string           `json:"impact"`
	Status     DependencyStatus `json:"status" enum:"Waiting,Resolved,Critical"`
}

// Report is a canonical project status report. After normalization every
// array field is non-nil, every enum field holds a declared value and
// DeliverySentiment sits in [0,100].
type Report struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	ProjectName       string            `json:"projectName"`
	ReportDate        string            `json:"reportDate"`
	Summary           string            `json:"summary"`
	OverallStatus     StatusLevel       `json:"overallStatus" enum:"On Track,At Risk,Off Track"`
	Health            HealthVector      `json:"health"`
	Highlights        []string          `json:"highlights"`
	UpcomingWork      []string          `json:"upcomingWork"`
	Risks             []RiskEntry       `json:"risks"`
	ActionItems       []ActionEntry     `json:"actionItems"`
	Workload          []WorkloadEntry   `json:"workload"`
	Dependencies      []DependencyEntry `json:"dependencies"`
	DeliverySentiment int               `json:"deliverySentiment" minimum:"0" maximum:"100"`
	CreatedAt         int64             `json:"createdAt"`
}

// User is the single active identity for a workspace.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey is the workspace service credential for the HTTP API.
type APIKey struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// StatusLevels in ascending severity order.
func StatusLevels() []StatusLevel {
	return []StatusLevel{StatusOnTrack, StatusAtRisk, StatusOffTrack}
}

func Severities() []Severity {
	return []Severity{SeverityHigh, SeverityMedium, SeverityLow}
}

func ActionStatuses() []ActionStatus {
	return []ActionStatus{ActionOpen, ActionClosed, ActionBlocked}
}

func DependencyStatuses() []DependencyStatus {
	return []DependencyStatus{DependencyWaiting, DependencyResolved, DependencyCritical}
}
