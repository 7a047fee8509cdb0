package engine

import (
	"context"
	"math"
	"sort"
	"time"

	"esgtrack/internal/domain"
	"esgtrack/internal/repo"
)

type CategoryStats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	InProgress     int     `json:"in_progress"`
	Todo           int     `json:"todo"`
	CompletionRate float64 `json:"completion_rate"`
}

type TaskRef struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Category    domain.Category `json:"category"`
	Priority    domain.Priority `json:"priority"`
	DueDate     time.Time       `json:"due_date"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Stats is the dashboard summary for one company.
type Stats struct {
	CompanyID       string                            `json:"company_id"`
	Total           int                               `json:"total"`
	ByStatus        map[string]int                    `json:"by_status"`
	Overdue         int                               `json:"overdue"`
	CompletionRate  float64                           `json:"completion_rate"`
	Categories      map[domain.Category]CategoryStats `json:"categories"`
	HoursRemaining  float64                           `json:"hours_remaining"`
	UpcomingDue     []TaskRef                         `json:"upcoming_due"`
	RecentCompleted []TaskRef                         `json:"recent_completed"`
}

const recentLimit = 5

// Stats summarizes task progress. Overdue counts open tasks past due;
// upcoming lists open tasks due within the rulebook window.
func (e Engine) Stats(ctx context.Context, companyID string) (Stats, error) {
	if _, err := e.Repo.GetCompany(ctx, companyID); err != nil {
		return Stats{}, err
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{CompanyID: companyID})
	if err != nil {
		return Stats{}, err
	}
	now := e.now()
	window := 7
	if e.Config != nil {
		window = e.Config.UpcomingWindow()
	}
	horizon := now.AddDate(0, 0, window)

	s := Stats{
		CompanyID:       companyID,
		Total:           len(tasks),
		ByStatus:        map[string]int{},
		Categories:      map[domain.Category]CategoryStats{},
		UpcomingDue:     []TaskRef{},
		RecentCompleted: []TaskRef{},
	}
	for _, st := range statuses {
		s.ByStatus[st] = 0
	}
	for _, c := range domain.Categories {
		s.Categories[c] = CategoryStats{}
	}
	var upcoming, recent []domain.Task
	for _, t := range tasks {
		s.ByStatus[t.Status]++
		cs := s.Categories[t.Category]
		cs.Total++
		switch t.Status {
		case domain.StatusCompleted:
			cs.Completed++
			if t.CompletedAt != nil && !t.CompletedAt.Before(now.AddDate(0, 0, -7)) {
				recent = append(recent, t)
			}
		case domain.StatusInProgress:
			cs.InProgress++
		case domain.StatusTodo:
			cs.Todo++
		}
		s.Categories[t.Category] = cs
		if t.Status != domain.StatusCompleted {
			s.HoursRemaining += t.EstimatedHours
		}
		if !isOpen(t) {
			continue
		}
		if t.DueDate.Before(now) {
			s.Overdue++
		} else if !t.DueDate.After(horizon) {
			upcoming = append(upcoming, t)
		}
	}
	for c, cs := range s.Categories {
		cs.CompletionRate = rate(cs.Completed, cs.Total)
		s.Categories[c] = cs
	}
	s.CompletionRate = rate(s.ByStatus[domain.StatusCompleted], s.Total)

	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].DueDate.Before(upcoming[j].DueDate) })
	for i, t := range upcoming {
		if i == recentLimit {
			break
		}
		s.UpcomingDue = append(s.UpcomingDue, ref(t))
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CompletedAt.After(*recent[j].CompletedAt) })
	for i, t := range recent {
		if i == recentLimit {
			break
		}
		s.RecentCompleted = append(s.RecentCompleted, ref(t))
	}
	return s, nil
}

func rate(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(done)/float64(total)*10000) / 100
}

func ref(t domain.Task) TaskRef {
	return TaskRef{ID: t.ID, Title: t.Title, Category: t.Category, Priority: t.Priority, DueDate: t.DueDate, CompletedAt: t.CompletedAt}
}

// Next step kinds.
const (
	StepUrgent = "urgent"
	StepUpload = "upload"
	StepReview = "review"
)

type NextStep struct {
	Type        string          `json:"type" enum:"urgent,upload,review"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Action      string          `json:"action"`
	Priority    domain.Priority `json:"priority"`
	DueDate     time.Time       `json:"due_date"`
	TaskID      string          `json:"task_id"`
	Category    domain.Category `json:"category"`
}

const (
	maxNextSteps = 5
	maxUrgent    = 3
	maxUploads   = 2
	maxReviews   = 2
)

// NextSteps suggests up to five actions: overdue high priority tasks, then
// open tasks still missing file evidence, then tasks awaiting review.
func (e Engine) NextSteps(ctx context.Context, companyID string) ([]NextStep, error) {
	if _, err := e.Repo.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	now := e.now()
	steps := []NextStep{}
	used := map[string]bool{}

	var urgent []domain.Task
	for _, t := range tasks {
		if isOpen(t) && t.Priority == domain.PriorityHigh && t.DueDate.Before(now) {
			urgent = append(urgent, t)
		}
	}
	sort.SliceStable(urgent, func(i, j int) bool { return urgent[i].DueDate.Before(urgent[j].DueDate) })
	for i, t := range urgent {
		if i == maxUrgent {
			break
		}
		used[t.ID] = true
		steps = append(steps, step(StepUrgent, "Complete: ", firstNonEmpty(t.ActionRequired, t.Description), "Continue", t))
	}

	uploads := 0
	for _, t := range tasks {
		if uploads == maxUploads {
			break
		}
		if used[t.ID] || !isOpen(t) || t.EvidenceType == domain.EvidenceData || t.Progress >= 100 {
			continue
		}
		used[t.ID] = true
		uploads++
		steps = append(steps, step(StepUpload, "Upload: ", "Upload supporting documents", "Upload", t))
	}

	reviews := 0
	for _, t := range tasks {
		if reviews == maxReviews {
			break
		}
		if used[t.ID] || t.Status != domain.StatusPendingReview {
			continue
		}
		reviews++
		steps = append(steps, step(StepReview, "Review: ", firstNonEmpty(t.ActionRequired, "Review and update documentation"), "Review", t))
	}

	if len(steps) > maxNextSteps {
		steps = steps[:maxNextSteps]
	}
	return steps, nil
}

func step(kind, prefix, desc, action string, t domain.Task) NextStep {
	return NextStep{
		Type:        kind,
		Title:       prefix + t.Title,
		Description: desc,
		Action:      action,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		TaskID:      t.ID,
		Category:    t.Category,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
