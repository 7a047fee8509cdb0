package domain

import "time"

type Category string

const (
	CategoryEnvironmental Category = "environmental"
	CategorySocial        Category = "social"
	CategoryGovernance    Category = "governance"
	CategoryGeneral       Category = "general"
)

// Categories lists every category a task may carry.
var Categories = []Category{CategoryEnvironmental, CategorySocial, CategoryGovernance, CategoryGeneral}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities for sorting; lower is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

func (p Priority) Valid() bool { return p.Rank() < 3 }

type QuestionType string

const (
	QuestionYesNo  QuestionType = "yes_no"
	QuestionText   QuestionType = "text"
	QuestionNumber QuestionType = "number"
)

type EvidenceType string

const (
	EvidenceFile  EvidenceType = "file"
	EvidenceData  EvidenceType = "data"
	EvidenceMixed EvidenceType = "mixed"
)

const (
	StatusTodo          = "todo"
	StatusInProgress    = "in_progress"
	StatusPendingReview = "pending_review"
	StatusCompleted     = "completed"
	StatusBlocked       = "blocked"
)

const (
	SourceQuestion  = "question"
	SourceFramework = "framework"
)

// Question is one scoping question within a sector.
type Question struct {
	ID         string       `json:"id" yaml:"id"`
	Text       string       `json:"text" yaml:"text"`
	Rationale  string       `json:"rationale" yaml:"rationale"`
	Frameworks string       `json:"frameworks" yaml:"frameworks"`
	DataSource string       `json:"data_source" yaml:"data_source"`
	Category   string       `json:"category" yaml:"category"`
	Required   bool         `json:"required" yaml:"required"`
	Type       QuestionType `json:"type" yaml:"type" enum:"yes_no,text,number"`
}

// Sector is the immutable reference definition of one business sector.
type Sector struct {
	Key        string     `json:"key" yaml:"key"`
	Name       string     `json:"name" yaml:"name"`
	Categories []string   `json:"categories" yaml:"categories"`
	Frameworks []string   `json:"frameworks" yaml:"frameworks"`
	Questions  []Question `json:"questions" yaml:"questions"`
}

// Answers maps question ids to raw questionnaire values.
type Answers map[string]any

// Preferences are reserved for tuning generation; they are stored but not consulted yet.
type Preferences struct {
	PriorityLevel       string `json:"priority_level,omitempty"`
	CompletionTimeframe string `json:"completion_timeframe,omitempty"`
}

type Meter struct {
	Number   string `json:"number"`
	Type     string `json:"type" enum:"electricity,water"`
	Provider string `json:"provider,omitempty"`
	Location string `json:"location,omitempty"`
}

type Company struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Sector       string      `json:"sector"`
	Emirate      string      `json:"emirate,omitempty"`
	EmployeeSize string      `json:"employee_size,omitempty"`
	Preferences  Preferences `json:"preferences"`
	Answers      Answers     `json:"answers,omitempty"`
	Meters       []Meter     `json:"meters,omitempty"`
	CreatedAt    string      `json:"created_at" format:"date-time"`
	UpdatedAt    string      `json:"updated_at" format:"date-time"`
}

// Task is a compliance action item, either freshly generated or persisted.
type Task struct {
	ID                    string       `json:"id"`
	CompanyID             string       `json:"company_id"`
	Sector                string       `json:"sector"`
	Title                 string       `json:"title"`
	Description           string       `json:"description,omitempty"`
	ComplianceContext     string       `json:"compliance_context,omitempty"`
	ActionRequired        string       `json:"action_required,omitempty"`
	Category              Category     `json:"category" enum:"environmental,social,governance,general"`
	Priority              Priority     `json:"priority" enum:"high,medium,low"`
	Status                string       `json:"status" enum:"todo,in_progress,pending_review,completed,blocked"`
	DueDate               time.Time    `json:"due_date"`
	FrameworkTags         []string     `json:"framework_tags"`
	RequiredEvidenceCount int          `json:"required_evidence_count"`
	EvidenceType          EvidenceType `json:"evidence_type" enum:"file,data,mixed"`
	EstimatedHours        float64      `json:"estimated_hours,omitempty"`
	Source                string       `json:"source" enum:"question,framework"`
	SourceKey             string       `json:"source_key"`
	Progress              float64      `json:"progress"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
	CompletedAt           *time.Time   `json:"completed_at,omitempty"`
}

type Evidence struct {
	ID        string       `json:"id"`
	TaskID    string       `json:"task_id"`
	CompanyID string       `json:"company_id"`
	Kind      EvidenceType `json:"kind" enum:"file,data"`
	Filename  string       `json:"filename,omitempty"`
	MimeType  string       `json:"mime_type,omitempty"`
	Value     *float64     `json:"value,omitempty"`
	Unit      string       `json:"unit,omitempty"`
	Note      string       `json:"note,omitempty"`
	CreatedBy string       `json:"created_by"`
	CreatedAt string       `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	CompanyID  string `json:"company_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
