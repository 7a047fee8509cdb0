package engine

import (
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"esgtrack/internal/domain"
	"esgtrack/internal/events"
	"esgtrack/internal/generator"
	"esgtrack/internal/repo"
)

// ApplyResult reports how a generation run was merged into stored tasks.
type ApplyResult struct {
	Created   int           `json:"created"`
	Refreshed int           `json:"refreshed"`
	Unchanged int           `json:"unchanged"`
	Removed   int           `json:"removed"`
	Kept      int           `json:"kept"`
	Tasks     []domain.Task `json:"tasks"`
}

// GenerationResult is the outcome of GenerateForCompany.
type GenerationResult struct {
	CompanyID string            `json:"company_id"`
	DryRun    bool              `json:"dry_run"`
	Tasks     []domain.Task     `json:"tasks"`
	Summary   generator.Summary `json:"summary"`
	Applied   *ApplyResult      `json:"applied,omitempty"`
}

func (e Engine) gen() *generator.Generator {
	var g generator.Generator
	if e.Generator != nil {
		g = *e.Generator
	} else {
		g = *generator.New(e.Bank, e.Config, e.logger())
	}
	if e.Config != nil {
		g.Config = e.Config
	}
	if g.Policy == nil {
		g.Policy = generator.PolicyFor(g.Config)
	}
	g.Now = e.now
	return &g
}

// Generate runs the generator for a stored company without touching its tasks.
func (e Engine) Generate(ctx context.Context, companyID string) ([]domain.Task, error) {
	c, err := e.Repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return e.generateFor(c)
}

// generateFor reports a failed run as ErrGenerationFailed instead of an
// empty task list.
func (e Engine) generateFor(c domain.Company) ([]domain.Task, error) {
	tasks, outcome := e.gen().GenerateRun(c.Sector, c.Answers, c.Preferences, c.ID)
	if outcome == generator.OutcomeFailed {
		return nil, fmt.Errorf("%w for company %s", ErrGenerationFailed, c.ID)
	}
	return generator.EnrichWithMeters(tasks, c.Meters), nil
}

// GenerateForCompany generates tasks and, unless dryRun, merges them into the store.
func (e Engine) GenerateForCompany(ctx context.Context, companyID string, dryRun bool, actorID string) (GenerationResult, error) {
	tasks, err := e.Generate(ctx, companyID)
	if err != nil {
		return GenerationResult{}, err
	}
	res := GenerationResult{CompanyID: companyID, DryRun: dryRun, Tasks: tasks, Summary: generator.Summarize(tasks)}
	if dryRun {
		return res, nil
	}
	applied, err := e.ApplyGeneration(ctx, companyID, tasks, actorID)
	if err != nil {
		return res, err
	}
	res.Applied = &applied
	return res, nil
}

// ApplyGeneration merges generated tasks by source key. Existing tasks keep
// their id, status, due date and evidence; descriptive fields are refreshed.
// Stale tasks are deleted only while still todo without evidence.
func (e Engine) ApplyGeneration(ctx context.Context, companyID string, generated []domain.Task, actorID string) (ApplyResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ApplyResult{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetCompanyTx(ctx, tx, companyID); err != nil {
		return ApplyResult{}, err
	}
	existing, err := e.Repo.ListTasksTx(ctx, tx, repo.TaskFilters{CompanyID: companyID})
	if err != nil {
		return ApplyResult{}, err
	}
	counts, err := e.Repo.EvidenceCounts(ctx, tx, companyID)
	if err != nil {
		return ApplyResult{}, err
	}
	bySource := make(map[string]domain.Task, len(existing))
	for _, t := range existing {
		bySource[t.SourceKey] = t
	}

	var res ApplyResult
	w := e.eventWriter()
	now := e.now()
	seen := map[string]bool{}
	for _, g := range generated {
		if seen[g.SourceKey] {
			return res, fmt.Errorf("duplicate source key %s in generation run", g.SourceKey)
		}
		seen[g.SourceKey] = true
		g.CompanyID = companyID

		cur, ok := bySource[g.SourceKey]
		if !ok {
			if err := e.Repo.InsertTask(ctx, tx, g); err != nil {
				return res, fmt.Errorf("insert task %s: %w", g.SourceKey, err)
			}
			payload := events.EventPayload{"source_key": g.SourceKey, "priority": g.Priority, "category": g.Category}
			if err := w.Append(ctx, tx, events.TaskCreated, companyID, events.EntityTask, g.ID, actorID, payload); err != nil {
				return res, err
			}
			res.Created++
			res.Tasks = append(res.Tasks, g)
			continue
		}

		next := refresh(cur, g, counts[cur.ID])
		if taskEqual(cur, next) {
			res.Unchanged++
			res.Tasks = append(res.Tasks, cur)
			continue
		}
		next.UpdatedAt = now
		if err := e.Repo.UpdateTask(ctx, tx, next); err != nil {
			return res, fmt.Errorf("refresh task %s: %w", cur.ID, err)
		}
		if err := w.Append(ctx, tx, events.TaskRefreshed, companyID, events.EntityTask, cur.ID, actorID, events.EventPayload{"source_key": cur.SourceKey}); err != nil {
			return res, err
		}
		res.Refreshed++
		res.Tasks = append(res.Tasks, next)
	}

	for _, t := range existing {
		if seen[t.SourceKey] {
			continue
		}
		if t.Status != domain.StatusTodo || counts[t.ID] > 0 {
			res.Kept++
			res.Tasks = append(res.Tasks, t)
			continue
		}
		if err := e.Repo.DeleteTask(ctx, tx, t.ID); err != nil {
			return res, fmt.Errorf("remove task %s: %w", t.ID, err)
		}
		if err := w.Append(ctx, tx, events.TaskRemoved, companyID, events.EntityTask, t.ID, actorID, events.EventPayload{"source_key": t.SourceKey}); err != nil {
			return res, err
		}
		res.Removed++
	}

	payload := events.EventPayload{
		"generated": len(generated),
		"created":   res.Created,
		"refreshed": res.Refreshed,
		"unchanged": res.Unchanged,
		"removed":   res.Removed,
		"kept":      res.Kept,
	}
	if err := w.Append(ctx, tx, events.GenerationApplied, companyID, events.EntityCompany, companyID, actorID, payload); err != nil {
		return res, err
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	sortTasks(res.Tasks)
	e.logger().Info("generation applied",
		zap.String("company_id", companyID),
		zap.Int("created", res.Created),
		zap.Int("refreshed", res.Refreshed),
		zap.Int("removed", res.Removed),
		zap.Int("kept", res.Kept))
	return res, nil
}

func refresh(cur, g domain.Task, evidenceCount int) domain.Task {
	next := cur
	next.Sector = g.Sector
	next.Title = g.Title
	next.Description = g.Description
	next.ComplianceContext = g.ComplianceContext
	next.ActionRequired = g.ActionRequired
	next.Category = g.Category
	next.Priority = g.Priority
	next.FrameworkTags = g.FrameworkTags
	next.RequiredEvidenceCount = g.RequiredEvidenceCount
	next.EvidenceType = g.EvidenceType
	next.EstimatedHours = g.EstimatedHours
	if next.Status != domain.StatusCompleted {
		next.Progress = progress(evidenceCount, next.RequiredEvidenceCount)
	}
	return next
}

func taskEqual(a, b domain.Task) bool {
	return a.Sector == b.Sector &&
		a.Title == b.Title &&
		a.Description == b.Description &&
		a.ComplianceContext == b.ComplianceContext &&
		a.ActionRequired == b.ActionRequired &&
		a.Category == b.Category &&
		a.Priority == b.Priority &&
		slices.Equal(a.FrameworkTags, b.FrameworkTags) &&
		a.RequiredEvidenceCount == b.RequiredEvidenceCount &&
		a.EvidenceType == b.EvidenceType &&
		a.EstimatedHours == b.EstimatedHours &&
		a.Progress == b.Progress
}

// progress is the share of required evidence attached, capped at 100.
func progress(attached, required int) float64 {
	if required <= 0 {
		required = 1
	}
	return math.Min(100, math.Round(float64(attached)/float64(required)*10000)/100)
}

// RegenerateResult reports one company of a bulk regeneration.
type RegenerateResult struct {
	CompanyID string       `json:"company_id"`
	Applied   *ApplyResult `json:"applied,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Regenerate reruns generation for the given companies, or all when ids is
// empty. Generation fans out over concurrency workers; merges are applied
// one company at a time.
func (e Engine) Regenerate(ctx context.Context, ids []string, concurrency int, actorID string) ([]RegenerateResult, error) {
	if len(ids) == 0 {
		companies, err := e.Repo.ListCompanies(ctx, repo.CompanyFilters{})
		if err != nil {
			return nil, err
		}
		for _, c := range companies {
			ids = append(ids, c.ID)
		}
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	generated := make([][]domain.Task, len(ids))
	failures := make([]error, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tasks, err := e.Generate(gctx, id)
			if err != nil {
				failures[i] = err
				return nil
			}
			generated[i] = tasks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]RegenerateResult, len(ids))
	for i, id := range ids {
		results[i].CompanyID = id
		if failures[i] != nil {
			results[i].Error = failures[i].Error()
			continue
		}
		applied, err := e.ApplyGeneration(ctx, id, generated[i], actorID)
		if err != nil {
			e.logger().Error("regeneration failed", zap.String("company_id", id), zap.Error(err))
			results[i].Error = err.Error()
			continue
		}
		results[i].Applied = &applied
	}
	return results, nil
}
