package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"esgtrack/internal/domain"
	"esgtrack/internal/events"
	"esgtrack/internal/evidence"
	"esgtrack/internal/metrics"
)

type EvidenceOptions struct {
	CompanyID string
	TaskID    string
	Kind      domain.EvidenceType
	Filename  string
	MimeType  string
	Value     *float64
	Unit      string
	Note      string
	ActorID   string
}

// EvidenceResult pairs the stored item with the task's new state.
type EvidenceResult struct {
	Evidence domain.Evidence `json:"evidence"`
	Task     domain.Task     `json:"task"`
}

// AddEvidence attaches an item to a task and recomputes progress. The first
// item starts a todo task; reaching 100% moves it to pending review.
func (e Engine) AddEvidence(ctx context.Context, opts EvidenceOptions) (EvidenceResult, error) {
	switch opts.Kind {
	case domain.EvidenceFile:
		if strings.TrimSpace(opts.Filename) == "" {
			return EvidenceResult{}, invalidf("filename is required for file evidence")
		}
	case domain.EvidenceData:
		if opts.Value == nil {
			return EvidenceResult{}, invalidf("value is required for data evidence")
		}
	default:
		return EvidenceResult{}, invalidf("evidence kind must be file or data")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return EvidenceResult{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, opts.CompanyID, opts.TaskID)
	if err != nil {
		return EvidenceResult{}, err
	}
	if t.Status == domain.StatusCompleted {
		return EvidenceResult{}, fmt.Errorf("%w: task %s is already completed", ErrEvidenceRejected, t.ID)
	}
	if !evidence.Accepts(t.EvidenceType, opts.Kind) {
		return EvidenceResult{}, fmt.Errorf("%w: task expects %s evidence, got %s", ErrEvidenceRejected, t.EvidenceType, opts.Kind)
	}
	if opts.Kind == domain.EvidenceFile {
		req := evidence.Classify(t.ActionRequired, t.Title)
		if !formatAccepted(opts.Filename, req.AcceptedFormats) {
			return EvidenceResult{}, fmt.Errorf("%w: %s is not one of %s", ErrEvidenceRejected, opts.Filename, strings.Join(req.AcceptedFormats, ", "))
		}
	}

	now := e.now()
	ev := domain.Evidence{
		ID:        newID("evidence"),
		TaskID:    t.ID,
		CompanyID: t.CompanyID,
		Kind:      opts.Kind,
		Filename:  strings.TrimSpace(opts.Filename),
		MimeType:  opts.MimeType,
		Value:     opts.Value,
		Unit:      opts.Unit,
		Note:      opts.Note,
		CreatedBy: opts.ActorID,
		CreatedAt: e.stamp(),
	}
	if err := e.Repo.InsertEvidence(ctx, tx, ev); err != nil {
		return EvidenceResult{}, fmt.Errorf("insert evidence: %w", err)
	}
	count, err := e.Repo.CountEvidence(ctx, tx, t.ID)
	if err != nil {
		return EvidenceResult{}, err
	}
	oldStatus := t.Status
	t.Progress = progress(count, t.RequiredEvidenceCount)
	if t.Status == domain.StatusTodo {
		setStatus(&t, domain.StatusInProgress, now)
	}
	if t.Progress >= 100 && t.Status == domain.StatusInProgress {
		setStatus(&t, domain.StatusPendingReview, now)
	}
	t.UpdatedAt = now
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return EvidenceResult{}, err
	}

	w := e.eventWriter()
	payload := events.EventPayload{"task_id": t.ID, "kind": ev.Kind, "progress": t.Progress}
	if err := w.Append(ctx, tx, events.EvidenceAdded, t.CompanyID, events.EntityEvidence, ev.ID, opts.ActorID, payload); err != nil {
		return EvidenceResult{}, err
	}
	if oldStatus != t.Status {
		if err := w.Append(ctx, tx, events.TaskStatusChanged, t.CompanyID, events.EntityTask, t.ID, opts.ActorID, events.EventPayload{"from": oldStatus, "to": t.Status}); err != nil {
			return EvidenceResult{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return EvidenceResult{}, err
	}
	metrics.RecordEvidence(string(ev.Kind))
	return EvidenceResult{Evidence: ev, Task: t}, nil
}

func (e Engine) ListEvidence(ctx context.Context, companyID, taskID string) ([]domain.Evidence, error) {
	if _, err := e.Repo.GetTask(ctx, companyID, taskID); err != nil {
		return nil, err
	}
	return e.Repo.ListEvidence(ctx, taskID)
}

// formatAccepted checks the file extension; an empty list accepts anything.
func formatAccepted(filename string, formats []string) bool {
	if len(formats) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "jpeg" {
		ext = "jpg"
	}
	for _, f := range formats {
		if f == ext || (f == "jpeg" && ext == "jpg") {
			return true
		}
	}
	return false
}
