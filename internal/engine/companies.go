package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"esgtrack/internal/domain"
	"esgtrack/internal/events"
	"esgtrack/internal/generator"
	"esgtrack/internal/questionbank"
	"esgtrack/internal/repo"
	"esgtrack/internal/rules"
)

type CompanyCreateOptions struct {
	ID           string
	Name         string
	Sector       string
	Emirate      string
	EmployeeSize string
	Preferences  domain.Preferences
	Answers      domain.Answers
	ActorID      string
}

// CreateCompany registers a company profile. Sectors outside the question
// bank are accepted; generation then yields general framework tasks only.
func (e Engine) CreateCompany(ctx context.Context, opts CompanyCreateOptions) (domain.Company, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Company{}, invalidf("company name is required")
	}
	sector := questionbank.NormalizeSectorKey(opts.Sector)
	if sector == "" {
		return domain.Company{}, invalidf("sector is required")
	}
	if e.Bank != nil {
		if _, ok := e.Bank.Sector(sector); !ok {
			e.logger().Warn("company registered with unknown sector", zap.String("sector", sector))
		}
	}
	answers := domain.Answers{}
	if len(opts.Answers) > 0 {
		if err := e.validateAnswers(sector, opts.Answers); err != nil {
			return domain.Company{}, err
		}
		for k, v := range opts.Answers {
			answers[k] = v
		}
	}
	id := opts.ID
	if id == "" {
		id = newID("company")
	}
	now := e.stamp()
	c := domain.Company{
		ID:           id,
		Name:         name,
		Sector:       sector,
		Emirate:      strings.TrimSpace(opts.Emirate),
		EmployeeSize: strings.TrimSpace(opts.EmployeeSize),
		Preferences:  opts.Preferences,
		Answers:      answers,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Company{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCompany(ctx, tx, c); err != nil {
		return domain.Company{}, fmt.Errorf("insert company: %w", err)
	}
	payload := events.EventPayload{"name": c.Name, "sector": c.Sector, "answers": len(c.Answers)}
	if err := e.eventWriter().Append(ctx, tx, events.CompanyCreated, c.ID, events.EntityCompany, c.ID, opts.ActorID, payload); err != nil {
		return domain.Company{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

func (e Engine) GetCompany(ctx context.Context, id string) (domain.Company, error) {
	return e.Repo.GetCompany(ctx, id)
}

func (e Engine) ListCompanies(ctx context.Context, f repo.CompanyFilters) ([]domain.Company, error) {
	if f.Sector != "" {
		f.Sector = questionbank.NormalizeSectorKey(f.Sector)
	}
	return e.Repo.ListCompanies(ctx, f)
}

type CompanyUpdateOptions struct {
	ID           string
	Name         *string
	Emirate      *string
	EmployeeSize *string
	Preferences  *domain.Preferences
	ActorID      string
}

// UpdateCompany edits profile fields. The sector is fixed once registered.
func (e Engine) UpdateCompany(ctx context.Context, opts CompanyUpdateOptions) (domain.Company, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Company{}, err
	}
	defer tx.Rollback()
	c, err := e.Repo.GetCompanyTx(ctx, tx, opts.ID)
	if err != nil {
		return c, err
	}
	changed := []string{}
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if name == "" {
			return c, invalidf("company name is required")
		}
		c.Name = name
		changed = append(changed, "name")
	}
	if opts.Emirate != nil {
		c.Emirate = strings.TrimSpace(*opts.Emirate)
		changed = append(changed, "emirate")
	}
	if opts.EmployeeSize != nil {
		c.EmployeeSize = strings.TrimSpace(*opts.EmployeeSize)
		changed = append(changed, "employee_size")
	}
	if opts.Preferences != nil {
		c.Preferences = *opts.Preferences
		changed = append(changed, "preferences")
	}
	if len(changed) == 0 {
		return c, nil
	}
	c.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateCompany(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.eventWriter().Append(ctx, tx, events.CompanyUpdated, c.ID, events.EntityCompany, c.ID, opts.ActorID, events.EventPayload{"fields": changed}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

type AnswersUpdateOptions struct {
	CompanyID string
	Answers   domain.Answers
	// Replace drops answers not present in Answers; otherwise they are merged.
	Replace bool
	ActorID string
}

// UpdateAnswers stores questionnaire answers. A nil value removes an answer.
func (e Engine) UpdateAnswers(ctx context.Context, opts AnswersUpdateOptions) (domain.Company, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Company{}, err
	}
	defer tx.Rollback()
	c, err := e.Repo.GetCompanyTx(ctx, tx, opts.CompanyID)
	if err != nil {
		return c, err
	}
	if err := e.validateAnswers(c.Sector, opts.Answers); err != nil {
		return c, err
	}
	next := domain.Answers{}
	if !opts.Replace {
		for k, v := range c.Answers {
			next[k] = v
		}
	}
	for k, v := range opts.Answers {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	c.Answers = next
	c.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateCompany(ctx, tx, c); err != nil {
		return c, err
	}
	payload := events.EventPayload{"updated": len(opts.Answers), "total": len(next), "replace": opts.Replace}
	if err := e.eventWriter().Append(ctx, tx, events.AnswersUpdated, c.ID, events.EntityCompany, c.ID, opts.ActorID, payload); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

// validateAnswers checks ids against the sector's questions and yes_no values.
// Unknown sectors have no questions, so any answer is rejected.
func (e Engine) validateAnswers(sector string, answers domain.Answers) error {
	if len(answers) == 0 {
		return nil
	}
	if e.Bank == nil {
		return fmt.Errorf("question bank not loaded")
	}
	byID := map[string]domain.Question{}
	for _, q := range e.Bank.SectorQuestions(sector) {
		byID[q.ID] = q
	}
	for id, v := range answers {
		q, ok := byID[id]
		if !ok {
			return invalidf("question %s is not part of sector %s", id, sector)
		}
		if v == nil || q.Type != domain.QuestionYesNo {
			continue
		}
		switch rules.AnswerString(v) {
		case "yes", "no", "partial":
		default:
			return invalidf("answer to %s must be yes, no or partial", id)
		}
	}
	return nil
}

type MeterOptions struct {
	CompanyID string
	Meter     domain.Meter
	ActorID   string
}

// AddMeter records a utility meter; regenerate tasks to pick it up.
func (e Engine) AddMeter(ctx context.Context, opts MeterOptions) (domain.Company, error) {
	m := opts.Meter
	m.Number = strings.TrimSpace(m.Number)
	m.Type = strings.ToLower(strings.TrimSpace(m.Type))
	if m.Number == "" {
		return domain.Company{}, invalidf("meter number is required")
	}
	if m.Type != generator.MeterElectricity && m.Type != generator.MeterWater {
		return domain.Company{}, invalidf("meter type must be %s or %s", generator.MeterElectricity, generator.MeterWater)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Company{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetCompanyTx(ctx, tx, opts.CompanyID); err != nil {
		return domain.Company{}, err
	}
	if err := e.Repo.UpsertMeter(ctx, tx, opts.CompanyID, m, e.stamp()); err != nil {
		return domain.Company{}, err
	}
	payload := events.EventPayload{"number": m.Number, "type": m.Type, "provider": m.Provider}
	if err := e.eventWriter().Append(ctx, tx, events.MeterAdded, opts.CompanyID, events.EntityCompany, opts.CompanyID, opts.ActorID, payload); err != nil {
		return domain.Company{}, err
	}
	c, err := e.Repo.GetCompanyTx(ctx, tx, opts.CompanyID)
	if err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}
