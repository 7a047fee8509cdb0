// Package generator turns a company's sector and questionnaire answers into
// compliance tasks. Generation is pure: it never reads or writes stored
// tasks, and it never fails loudly. Merging a run into the store is the
// engine's job.
package generator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"esgtrack/internal/config"
	"esgtrack/internal/domain"
	"esgtrack/internal/evidence"
	"esgtrack/internal/metrics"
	"esgtrack/internal/questionbank"
	"esgtrack/internal/rules"
)

// Run outcomes recorded in metrics.
const (
	OutcomeOK            = "ok"
	OutcomeUnknownSector = "unknown_sector"
	OutcomeFailed        = "failed"
)

// Generator builds task lists from a question bank and a rulebook.
type Generator struct {
	Bank   *questionbank.Bank
	Config *config.Config
	Policy rules.Policy
	Logger *zap.Logger
	Now    func() time.Time
	NewID  func(now time.Time) string
}

// New returns a Generator whose policy follows the rulebook scheduling.
func New(bank *questionbank.Bank, cfg *config.Config, logger *zap.Logger) *Generator {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Generator{
		Bank:   bank,
		Config: cfg,
		Policy: PolicyFor(cfg),
		Logger: logger,
	}
}

// PolicyFor builds the keyword policy from rulebook scheduling offsets.
func PolicyFor(cfg *config.Config) rules.KeywordPolicy {
	p := rules.DefaultPolicy()
	if cfg == nil {
		return p
	}
	if d := cfg.Scheduling.DueDays.High; d > 0 {
		p.HighDays = d
	}
	if d := cfg.Scheduling.DueDays.Medium; d > 0 {
		p.MediumDays = d
	}
	if d := cfg.Scheduling.DueDays.Low; d > 0 {
		p.LowDays = d
	}
	return p
}

// NewTaskID returns task_<unix millis>_<8 hex>.
func NewTaskID(now time.Time) string {
	return fmt.Sprintf("task_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func (g *Generator) newID(now time.Time) string {
	if g.NewID != nil {
		return g.NewID(now)
	}
	return NewTaskID(now)
}

func (g *Generator) logger() *zap.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return zap.L()
}

// Generate produces the ordered task list for one company. Any internal
// failure is logged and yields an empty list; an empty result therefore
// does not mean the company is compliant.
func (g *Generator) Generate(sectorKey string, answers domain.Answers, prefs domain.Preferences, companyID string) []domain.Task {
	tasks, _ := g.GenerateRun(sectorKey, answers, prefs, companyID)
	return tasks
}

// GenerateRun is Generate with the run outcome. Callers that merge the
// result into stored tasks must not treat an OutcomeFailed run as complete.
func (g *Generator) GenerateRun(sectorKey string, answers domain.Answers, prefs domain.Preferences, companyID string) (tasks []domain.Task, outcome string) {
	start := time.Now()
	outcome = OutcomeOK
	defer func() {
		if r := recover(); r != nil {
			g.logger().Error("task generation panicked",
				zap.String("company_id", companyID),
				zap.String("sector", sectorKey),
				zap.Any("panic", r),
				zap.Stack("stack"))
			tasks = []domain.Task{}
			outcome = OutcomeFailed
		}
		metrics.RecordGenerationRun(outcome, time.Since(start))
	}()

	out, known, err := g.generate(sectorKey, answers, companyID)
	if err != nil {
		g.logger().Error("task generation failed",
			zap.String("company_id", companyID),
			zap.String("sector", sectorKey),
			zap.Error(err))
		outcome = OutcomeFailed
		return []domain.Task{}, outcome
	}
	if !known {
		outcome = OutcomeUnknownSector
	}
	for _, t := range out {
		metrics.RecordGeneratedTask(t.Source, string(t.Category), string(t.Priority))
	}
	s := Summarize(out)
	g.logger().Info("tasks generated",
		zap.String("company_id", companyID),
		zap.String("sector", sectorKey),
		zap.String("priority_preference", prefs.PriorityLevel),
		zap.Int("total", s.Total),
		zap.Int("from_questions", s.BySource[domain.SourceQuestion]),
		zap.Int("from_frameworks", s.BySource[domain.SourceFramework]),
		zap.Any("by_category", s.ByCategory),
		zap.Any("by_priority", s.ByPriority),
		zap.Any("by_framework", s.ByFramework))
	return out, outcome
}

func (g *Generator) generate(sectorKey string, answers domain.Answers, companyID string) ([]domain.Task, bool, error) {
	if g.Bank == nil {
		return nil, false, fmt.Errorf("question bank not loaded")
	}
	cfg := g.rulebook()
	policy := g.Policy
	if policy == nil {
		policy = PolicyFor(cfg)
	}
	now := g.now()

	questions := g.Bank.SectorQuestions(sectorKey)
	frameworks := g.Bank.SectorFrameworks(sectorKey)
	_, known := g.Bank.Sector(sectorKey)
	if !known {
		g.logger().Warn("unknown sector; only general framework tasks will be generated",
			zap.String("sector", sectorKey),
			zap.String("company_id", companyID))
	}

	tasks := make([]domain.Task, 0, len(questions))
	for _, q := range questions {
		answer, ok := answers[q.ID]
		if !ok || answer == nil {
			continue
		}
		if !rules.IsTaskNeeded(q, answer) {
			continue
		}
		tasks = append(tasks, g.questionTask(cfg, q, answer, policy, now, sectorKey, companyID))
	}

	mandated, err := g.mandatedTasks(cfg, frameworks, policy, now, sectorKey, companyID)
	if err != nil {
		return nil, known, err
	}
	tasks = append(tasks, mandated...)

	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := tasks[i].Priority.Rank(), tasks[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return tasks[i].DueDate.Before(tasks[j].DueDate)
	})
	return tasks, known, nil
}

func (g *Generator) questionTask(cfg *config.Config, q domain.Question, answer any, policy rules.Policy, now time.Time, sectorKey, companyID string) domain.Task {
	priority := policy.Priority(q)
	title := rules.SynthesizeTitle(q.Text, rules.AnswerString(answer))
	req := evidence.Classify(q.DataSource, title)
	return domain.Task{
		ID:                    g.newID(now),
		CompanyID:             companyID,
		Sector:                sectorKey,
		Title:                 title,
		Description:           q.Rationale,
		ComplianceContext:     q.Frameworks,
		ActionRequired:        q.DataSource,
		Category:              g.category(cfg, q.Category),
		Priority:              priority,
		Status:                domain.StatusTodo,
		DueDate:               policy.DueDate(priority, now),
		FrameworkTags:         rules.ExtractFrameworkTags(q.Frameworks),
		RequiredEvidenceCount: req.ExpectedCount,
		EvidenceType:          req.Type,
		EstimatedHours:        EstimateHours(q.DataSource),
		Source:                domain.SourceQuestion,
		SourceKey:             q.ID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func (g *Generator) rulebook() *config.Config {
	if g.Config == nil {
		return config.Default()
	}
	return g.Config
}

func (g *Generator) category(cfg *config.Config, name string) domain.Category {
	if c, ok := cfg.Categories.Overrides[name]; ok && c.Valid() {
		return c
	}
	return rules.MapCategory(name, cfg.DefaultCategory())
}

// mandatedTasks instantiates templates for the sector frameworks plus the
// general UAE frameworks, each framework at most once.
func (g *Generator) mandatedTasks(cfg *config.Config, sectorFrameworks []string, policy rules.Policy, now time.Time, sectorKey, companyID string) ([]domain.Task, error) {
	var out []domain.Task
	seen := map[string]bool{}
	for _, fw := range append(append([]string{}, sectorFrameworks...), cfg.GeneralFrameworks()...) {
		if seen[fw] {
			continue
		}
		seen[fw] = true
		for i, tpl := range cfg.Frameworks.Mandated[fw] {
			if !tpl.Priority.Valid() {
				return nil, fmt.Errorf("mandated task %q for %s has invalid priority %q", tpl.Title, fw, tpl.Priority)
			}
			category := tpl.Category
			if !category.Valid() {
				category = domain.CategoryGeneral
			}
			compliance := tpl.ComplianceContext
			if compliance == "" {
				compliance = fw
			}
			req := evidence.Classify(tpl.ActionRequired, tpl.Title)
			hours := tpl.EstimatedHours
			if hours == 0 {
				hours = EstimateHours(tpl.ActionRequired)
			}
			out = append(out, domain.Task{
				ID:                    g.newID(now),
				CompanyID:             companyID,
				Sector:                sectorKey,
				Title:                 tpl.Title,
				Description:           tpl.Description,
				ComplianceContext:     compliance,
				ActionRequired:        tpl.ActionRequired,
				Category:              category,
				Priority:              tpl.Priority,
				Status:                domain.StatusTodo,
				DueDate:               policy.DueDate(tpl.Priority, now),
				FrameworkTags:         []string{fw},
				RequiredEvidenceCount: req.ExpectedCount,
				EvidenceType:          req.Type,
				EstimatedHours:        hours,
				Source:                domain.SourceFramework,
				SourceKey:             fmt.Sprintf("framework:%s:%d", fw, i),
				CreatedAt:             now,
				UpdatedAt:             now,
			})
		}
	}
	return out, nil
}

// EstimateHours guesses effort from the evidence hint of a question.
func EstimateHours(dataSource string) float64 {
	s := strings.ToLower(dataSource)
	switch {
	case containsAny(s, "bills", "invoices", "records", "monitoring"):
		return 8
	case containsAny(s, "policy", "plan", "assessment"):
		return 16
	case containsAny(s, "training", "committee", "system"):
		return 12
	}
	return 4
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
