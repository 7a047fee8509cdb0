package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"esgtrack/internal/domain"
	"esgtrack/internal/events"
	"esgtrack/internal/repo"
)

// ListTasks returns a company's tasks ordered by priority then due date.
func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	if f.CompanyID == "" {
		return nil, invalidf("company is required")
	}
	if _, err := e.Repo.GetCompany(ctx, f.CompanyID); err != nil {
		return nil, err
	}
	if f.Status != "" && !validStatus(f.Status) {
		return nil, invalidf("unknown status %s", f.Status)
	}
	if f.Priority != "" && !domain.Priority(f.Priority).Valid() {
		return nil, invalidf("unknown priority %s", f.Priority)
	}
	if f.Category != "" && !domain.Category(f.Category).Valid() {
		return nil, invalidf("unknown category %s", f.Category)
	}
	return e.Repo.ListTasks(ctx, f)
}

func (e Engine) GetTask(ctx context.Context, companyID, id string) (domain.Task, error) {
	return e.Repo.GetTask(ctx, companyID, id)
}

type TaskUpdateOptions struct {
	CompanyID string
	ID        string
	Status    string
	Priority  string
	DueDate   *time.Time
	ActorID   string
	Force     bool
}

// UpdateTask changes status, priority or due date. Status changes follow
// ensureTaskTransition unless forced.
func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, opts.CompanyID, opts.ID)
	if err != nil {
		return t, err
	}
	w := e.eventWriter()
	now := e.now()
	fields := []string{}
	if opts.Priority != "" && domain.Priority(opts.Priority) != t.Priority {
		p := domain.Priority(opts.Priority)
		if !p.Valid() {
			return t, invalidf("unknown priority %s", opts.Priority)
		}
		t.Priority = p
		fields = append(fields, "priority")
	}
	if opts.DueDate != nil {
		t.DueDate = opts.DueDate.UTC()
		fields = append(fields, "due_date")
	}
	oldStatus := t.Status
	if opts.Status != "" && opts.Status != t.Status {
		if !validStatus(opts.Status) {
			return t, invalidf("unknown status %s", opts.Status)
		}
		if err := ensureTaskTransition(t.Status, opts.Status, opts.Force); err != nil {
			return t, err
		}
		if opts.Status == domain.StatusCompleted && !opts.Force && t.Progress < 100 {
			return t, fmt.Errorf("%w: %.0f%% of required evidence attached", ErrEvidenceIncomplete, t.Progress)
		}
		setStatus(&t, opts.Status, now)
	}
	if len(fields) == 0 && oldStatus == t.Status {
		return t, nil
	}
	t.UpdatedAt = now
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	if oldStatus != t.Status {
		payload := events.EventPayload{"from": oldStatus, "to": t.Status, "force": opts.Force}
		if err := w.Append(ctx, tx, events.TaskStatusChanged, t.CompanyID, events.EntityTask, t.ID, opts.ActorID, payload); err != nil {
			return t, err
		}
	}
	if len(fields) > 0 {
		if err := w.Append(ctx, tx, events.TaskUpdated, t.CompanyID, events.EntityTask, t.ID, opts.ActorID, events.EventPayload{"fields": fields}); err != nil {
			return t, err
		}
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// CompleteTask marks a task completed. Without force all required evidence
// must be attached.
func (e Engine) CompleteTask(ctx context.Context, companyID, id, actorID string, force bool) (domain.Task, error) {
	return e.UpdateTask(ctx, TaskUpdateOptions{
		CompanyID: companyID,
		ID:        id,
		Status:    domain.StatusCompleted,
		ActorID:   actorID,
		Force:     force,
	})
}

func setStatus(t *domain.Task, status string, now time.Time) {
	t.Status = status
	if status == domain.StatusCompleted {
		ts := now
		t.CompletedAt = &ts
	} else {
		t.CompletedAt = nil
	}
}

func ensureTaskTransition(oldStatus, newStatus string, force bool) error {
	if force {
		return nil
	}
	switch oldStatus {
	case domain.StatusTodo:
		if newStatus == domain.StatusInProgress || newStatus == domain.StatusBlocked {
			return nil
		}
	case domain.StatusInProgress:
		if newStatus == domain.StatusPendingReview || newStatus == domain.StatusCompleted ||
			newStatus == domain.StatusBlocked || newStatus == domain.StatusTodo {
			return nil
		}
	case domain.StatusPendingReview:
		if newStatus == domain.StatusCompleted || newStatus == domain.StatusInProgress {
			return nil
		}
	case domain.StatusBlocked:
		if newStatus == domain.StatusTodo || newStatus == domain.StatusInProgress {
			return nil
		}
	}
	return fmt.Errorf("%w %s -> %s", ErrInvalidTransition, oldStatus, newStatus)
}

var statuses = []string{
	domain.StatusTodo,
	domain.StatusInProgress,
	domain.StatusPendingReview,
	domain.StatusCompleted,
	domain.StatusBlocked,
}

func validStatus(s string) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func isOpen(t domain.Task) bool {
	return t.Status == domain.StatusTodo || t.Status == domain.StatusInProgress
}

func sortTasks(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := tasks[i].Priority.Rank(), tasks[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		if !tasks[i].DueDate.Equal(tasks[j].DueDate) {
			return tasks[i].DueDate.Before(tasks[j].DueDate)
		}
		return strings.Compare(tasks[i].ID, tasks[j].ID) < 0
	})
}
