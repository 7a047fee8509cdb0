package engine

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"esgtrack/internal/domain"
	"esgtrack/internal/repo"
	"esgtrack/internal/rules"
)

// Framework compliance states.
const (
	ComplianceCompliant    = "compliant"
	CompliancePartial      = "partial"
	ComplianceNonCompliant = "non_compliant"
)

type MissingQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Category string `json:"category"`
}

// FrameworkCompliance reports how far a company is through one framework:
// answered required questions plus progress on the tasks tagged with it.
type FrameworkCompliance struct {
	CompanyID            string            `json:"company_id"`
	Framework            string            `json:"framework"`
	Status               string            `json:"status" enum:"compliant,partial,non_compliant"`
	CompliancePercentage float64           `json:"compliance_percentage"`
	RequiredQuestions    int               `json:"required_questions"`
	AnsweredQuestions    int               `json:"answered_questions"`
	MissingQuestions     []MissingQuestion `json:"missing_questions"`
	Tasks                int               `json:"tasks"`
	CompletedTasks       int               `json:"completed_tasks"`
	TaskProgress         float64           `json:"task_progress"`
	Recommendations      []string          `json:"recommendations"`
}

// FrameworkCompliance checks one framework for a company. The framework may
// be given by canonical name or any alias the tag dictionary knows, such as
// "DST". Frameworks unrelated to the company's sector are not found.
func (e Engine) FrameworkCompliance(ctx context.Context, companyID, framework string) (FrameworkCompliance, error) {
	if strings.TrimSpace(framework) == "" {
		return FrameworkCompliance{}, invalidf("framework is required")
	}
	c, err := e.Repo.GetCompany(ctx, companyID)
	if err != nil {
		return FrameworkCompliance{}, err
	}
	var questions []domain.Question
	if e.Bank != nil {
		questions = e.Bank.SectorQuestions(c.Sector)
	}
	known := e.companyFrameworks(c.Sector, questions)
	name, ok := resolveFramework(framework, known)
	if !ok {
		return FrameworkCompliance{}, fmt.Errorf("framework %s for company %s: %w", framework, companyID, repo.ErrNotFound)
	}

	out := FrameworkCompliance{
		CompanyID:        companyID,
		Framework:        name,
		MissingQuestions: []MissingQuestion{},
	}
	for _, q := range questions {
		if !q.Required || !slices.Contains(rules.ExtractFrameworkTags(q.Frameworks), name) {
			continue
		}
		out.RequiredQuestions++
		if v, ok := c.Answers[q.ID]; ok && v != nil && rules.AnswerString(v) != "" {
			out.AnsweredQuestions++
			continue
		}
		out.MissingQuestions = append(out.MissingQuestions, MissingQuestion{ID: q.ID, Question: q.Text, Category: q.Category})
	}
	if out.RequiredQuestions > 0 {
		out.CompliancePercentage = percent(out.AnsweredQuestions, out.RequiredQuestions)
	}

	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{CompanyID: companyID, Framework: name})
	if err != nil {
		return FrameworkCompliance{}, err
	}
	var progressSum float64
	for _, t := range tasks {
		out.Tasks++
		if t.Status == domain.StatusCompleted {
			out.CompletedTasks++
			progressSum += 100
			continue
		}
		progressSum += t.Progress
	}
	if out.Tasks > 0 {
		out.TaskProgress = math.Round(progressSum/float64(out.Tasks)*100) / 100
	}

	questionsDone := out.RequiredQuestions == 0 || out.AnsweredQuestions == out.RequiredQuestions
	switch {
	case questionsDone && out.CompletedTasks == out.Tasks:
		out.Status = ComplianceCompliant
	case out.CompliancePercentage >= 50 || out.CompletedTasks > 0:
		out.Status = CompliancePartial
	default:
		out.Status = ComplianceNonCompliant
	}
	out.Recommendations = recommendations(out)
	return out, nil
}

// companyFrameworks lists every framework that can apply to a sector.
func (e Engine) companyFrameworks(sector string, questions []domain.Question) []string {
	var names []string
	if e.Bank != nil {
		names = append(names, e.Bank.SectorFrameworks(sector)...)
	}
	if e.Config != nil {
		names = append(names, e.Config.GeneralFrameworks()...)
	}
	for _, q := range questions {
		names = append(names, rules.ExtractFrameworkTags(q.Frameworks)...)
	}
	return rules.MergeTags(nil, names...)
}

func resolveFramework(input string, known []string) (string, bool) {
	for _, name := range known {
		if strings.EqualFold(name, strings.TrimSpace(input)) {
			return name, true
		}
	}
	for _, tag := range rules.ExtractFrameworkTags(input) {
		if tag != rules.TagGeneralCompliance && slices.Contains(known, tag) {
			return tag, true
		}
	}
	return "", false
}

func recommendations(fc FrameworkCompliance) []string {
	if fc.Status == ComplianceCompliant {
		return []string{"Framework compliance complete"}
	}
	var out []string
	if n := len(fc.MissingQuestions); n > 0 {
		out = append(out, fmt.Sprintf("Answer the %d remaining required questions", n))
	}
	if open := fc.Tasks - fc.CompletedTasks; open > 0 {
		out = append(out, fmt.Sprintf("Upload supporting evidence for %d open tasks", open))
	}
	if fc.Tasks == 0 {
		out = append(out, "Generate tasks to build the action plan")
	}
	return append(out, "Review and verify responses")
}

func percent(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*10000) / 100
}
