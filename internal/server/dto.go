package server

import (
	"time"

	"esgtrack/internal/domain"
	"esgtrack/internal/engine"
)

type SectorSummary struct {
	Key        string   `json:"key"`
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
	Frameworks []string `json:"frameworks"`
	Questions  int      `json:"questions"`
}

type CompanyCreateRequest struct {
	ID           string              `json:"id,omitempty"`
	Name         string              `json:"name" minLength:"1"`
	Sector       string              `json:"sector" minLength:"1"`
	Emirate      string              `json:"emirate,omitempty"`
	EmployeeSize string              `json:"employee_size,omitempty"`
	Preferences  *domain.Preferences `json:"preferences,omitempty"`
	Answers      map[string]any      `json:"answers,omitempty"`
}

type CompanyUpdateRequest struct {
	Name         *string             `json:"name,omitempty"`
	Emirate      *string             `json:"emirate,omitempty"`
	EmployeeSize *string             `json:"employee_size,omitempty"`
	Preferences  *domain.Preferences `json:"preferences,omitempty"`
}

type AnswersRequest struct {
	Answers map[string]any `json:"answers"`
	Replace bool           `json:"replace,omitempty"`
}

type MeterRequest struct {
	Number   string `json:"number" minLength:"1"`
	Type     string `json:"type" enum:"electricity,water"`
	Provider string `json:"provider,omitempty"`
	Location string `json:"location,omitempty"`
}

type CompanyList struct {
	Items []domain.Company `json:"items"`
}

type TaskUpdateRequest struct {
	Status   string     `json:"status,omitempty" enum:"todo,in_progress,pending_review,completed,blocked"`
	Priority string     `json:"priority,omitempty" enum:"high,medium,low"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	Force    bool       `json:"force,omitempty"`
}

type TaskCompleteRequest struct {
	Force bool `json:"force,omitempty"`
}

type TaskList struct {
	Items []domain.Task `json:"items"`
}

type EvidenceRequest struct {
	Kind     string   `json:"kind" enum:"file,data"`
	Filename string   `json:"filename,omitempty"`
	MimeType string   `json:"mime_type,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Note     string   `json:"note,omitempty"`
}

type EvidenceList struct {
	Items []domain.Evidence `json:"items"`
}

type NextStepList struct {
	Items []engine.NextStep `json:"items"`
}

type EventList struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type ClassifyEvidenceRequest struct {
	ActionRequired string `json:"action_required,omitempty"`
	Title          string `json:"title,omitempty"`
}
