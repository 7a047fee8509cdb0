package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"esgtrack/internal/config"
	"esgtrack/internal/domain"
	"esgtrack/internal/events"
	"esgtrack/internal/generator"
	"esgtrack/internal/questionbank"
	"esgtrack/internal/repo"
)

// Errors callers can match with errors.Is.
var (
	ErrInvalid            = errors.New("invalid input")
	ErrInvalidTransition  = errors.New("invalid task status transition")
	ErrEvidenceIncomplete = errors.New("evidence incomplete")
	ErrEvidenceRejected   = errors.New("evidence not accepted")
	ErrGenerationFailed   = errors.New("task generation failed")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Bank      *questionbank.Bank
	Generator *generator.Generator
	Logger    *zap.Logger
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config, bank *questionbank.Bank, logger *zap.Logger) Engine {
	if logger == nil {
		logger = zap.L()
	}
	return Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Bank:      bank,
		Generator: generator.New(bank, cfg, logger),
		Logger:    logger,
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.L()
}

func (e Engine) eventWriter() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

func (e Engine) stamp() string {
	return e.now().Format(time.RFC3339)
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// ImportRulebook validates and stores a new rulebook.
func (e Engine) ImportRulebook(ctx context.Context, cfg *config.Config, actorID string) error {
	if cfg == nil {
		return invalidf("rulebook is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertRulebook(ctx, tx, cfg); err != nil {
		return err
	}
	payload := events.EventPayload{
		"mandated_frameworks": len(cfg.Frameworks.Mandated),
		"webhooks":            len(cfg.Webhooks),
	}
	if err := e.eventWriter().Append(ctx, tx, events.RulebookImported, "", events.EntityRulebook, "rulebook", actorID, payload); err != nil {
		return err
	}
	return tx.Commit()
}

// ListEvents returns the event log newest first.
func (e Engine) ListEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	if f.CompanyID != "" {
		if _, err := e.Repo.GetCompany(ctx, f.CompanyID); err != nil {
			return nil, err
		}
	}
	return e.Repo.LatestEvents(ctx, f)
}
